// Package imaging implements the content-addressed block-count derivation
// and the geometric descramble (stitch) the upstream app's scrambling
// scheme requires. Grounded on the teacher's GetScrambleNum/DecodeScrambledImage
// in jmclient.go, corrected against original_source/src/jm_client.rs's
// calculate_block_num and image_processor.rs's stitch_img — the teacher
// never strips the filename extension before hashing and always
// re-encodes as JPEG; both diverge from the exact algorithm below.
package imaging

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/jm-archive/jm-downloader/internal/apperr"
	"github.com/jm-archive/jm-downloader/internal/cryptoutil"
)

const (
	regimeBoundaryMid = 268850
	regimeBoundaryHi  = 421926
)

// BlockNum implements spec.md §4.B's block_num function: the number of
// horizontal bands the upstream split a page's image into. The last
// character of the hex MD5 digest is taken by its ASCII code point, not
// its nibble value — that distinction is load-bearing and must not be
// "cleaned up" to hex-value modulo.
func BlockNum(scrambleID, chapterID int64, filename string) int {
	if chapterID < scrambleID {
		return 0
	}
	if chapterID < regimeBoundaryMid {
		return 10
	}
	x := int64(10)
	if chapterID >= regimeBoundaryHi {
		x = 8
	}

	stem := filename
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		stem = filename[:i]
	}

	hash := cryptoutil.MD5Hex(strconv.FormatInt(chapterID, 10) + stem)
	last := int64(hash[len(hash)-1])
	return int((last%x)*2 + 2)
}

// sniffGIF reports whether data begins with a GIF magic prefix, matching
// original_source's format-guess step rather than relying on a declared
// content-type header.
func sniffGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

// Stitch reverses the upstream's band-scramble and returns a PNG-encoded
// image, except when src sniffs as GIF, in which case it is returned
// unchanged (GIFs are never scrambled upstream).
func Stitch(src []byte, scrambleID, chapterID int64, filename string) ([]byte, error) {
	if sniffGIF(src) {
		return src, nil
	}

	n := BlockNum(scrambleID, chapterID, filename)

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, apperr.Internalf("decode image %s: %v", filename, err)
	}

	if n == 0 {
		return encodePNG(img)
	}

	out, err := stitchBands(img, n)
	if err != nil {
		return nil, err
	}
	return encodePNG(out)
}

// stitchBands implements spec.md §4.B's exact geometry: the source is
// partitioned into n horizontal bands from the bottom up; output band i
// (0-based, top-down) is copied from source band i (counting from the
// bottom), with the single remainder row-slice attached to the topmost
// output band.
func stitchBands(src image.Image, n int) (image.Image, error) {
	if n < 2 {
		return nil, apperr.Internalf("stitch requires n >= 2, got %d", n)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if height == 0 {
		return nil, apperr.Internalf("cannot stitch a zero-height image")
	}

	bandHeight := height / n
	remainder := height % n
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	for i := 0; i < n; i++ {
		h := bandHeight
		if i == 0 {
			h += remainder
		}
		srcY0 := height - bandHeight*(i+1) - remainder
		dstY0 := bandHeight * i
		if i != 0 {
			dstY0 += remainder
		}

		srcRect := image.Rect(bounds.Min.X, bounds.Min.Y+srcY0, bounds.Min.X+width, bounds.Min.Y+srcY0+h)
		dstPoint := image.Pt(0, dstY0)
		draw.Draw(dst, image.Rect(dstPoint.X, dstPoint.Y, dstPoint.X+width, dstPoint.Y+h), src, srcRect.Min, draw.Src)
	}

	return dst, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperr.Internalf("encode PNG: %v", err)
	}
	return buf.Bytes(), nil
}
