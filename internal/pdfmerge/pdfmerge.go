// Package pdfmerge implements the single-volume PDF assembly stage of
// spec.md §4.F: gopdf page assembly at a fixed 300 DPI with per-image page
// sizing (the preserved "Open Question" of spec.md §9), followed by an
// external ghostscript subprocess as the sole compression/encryption
// mechanism. Grounded on the teacher's createSinglePDF (pdf.go) for the
// gopdf wiring, and on original_source/src/image_processor.rs's
// merge_images_to_pdf/compress_pdf_with_gs for the exact DPI math and
// ghostscript argument list the teacher's pdfcpu-based encryption diverges
// from (see DESIGN.md).
package pdfmerge

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/signintech/gopdf"

	"github.com/jm-archive/jm-downloader/internal/apperr"
	"github.com/jm-archive/jm-downloader/internal/metrics"
)

const dpi = 300.0

func pxToMM(px int) float64 {
	return float64(px) * 25.4 / dpi
}

// Merge assembles imagePaths (already on disk, in order) into a single PDF
// at outputPath. Each page is sized from its own source image's pixel
// dimensions — pages are not normalized to a common size.
func Merge(imagePaths []string, outputPath string) error {
	if len(imagePaths) == 0 {
		return apperr.Internalf("no images to merge into a PDF")
	}

	pdf := &gopdf.GoPdf{}
	firstW, firstH, err := imageDimensions(imagePaths[0])
	if err != nil {
		return apperr.Internalf("read first image %s: %v", imagePaths[0], err)
	}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: pxToMM(firstW), H: pxToMM(firstH)}})

	for i, path := range imagePaths {
		w, h, err := imageDimensions(path)
		if err != nil {
			return apperr.Internalf("read image %s: %v", path, err)
		}
		pageW, pageH := pxToMM(w), pxToMM(h)
		if i > 0 {
			pdf.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: pageW, H: pageH}})
		}
		if err := pdf.Image(path, 0, 0, &gopdf.Rect{W: pageW, H: pageH}); err != nil {
			return apperr.Internalf("embed image %s: %v", path, err)
		}
	}

	if err := pdf.WritePdf(outputPath); err != nil {
		metrics.PDFJobs.WithLabelValues("error").Inc()
		return apperr.Internalf("write PDF %s: %v", outputPath, err)
	}
	metrics.PDFJobs.WithLabelValues("ok").Inc()
	return nil
}

func imageDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Compress invokes the external ghostscript binary to compress pdfPath and
// optionally encrypt it with password, then atomically replaces pdfPath
// with the result. This subprocess is the sole means of encryption; the
// gopdf writer above never encrypts.
func Compress(pdfPath, password string) error {
	tmpPath := pdfPath + ".tmp"

	args := []string{"-q", "-dNOPAUSE", "-dBATCH", "-sDEVICE=pdfwrite"}
	if password != "" {
		args = append(args, "-sUserPassword="+password, "-sOwnerPassword="+password)
	}
	args = append(args, "-dPDFSETTINGS=/printer", "-dSAFER", "-o", tmpPath, pdfPath)

	cmd := exec.Command("gs", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return apperr.Internalf("ghostscript failed: %s", strings.TrimSpace(stderr.String()))
	}

	if err := os.Rename(tmpPath, pdfPath); err != nil {
		return apperr.Internalf("replace PDF %s with compressed output: %v", pdfPath, err)
	}
	return nil
}

// ValidatePageCount is a read-only post-compress sanity check: it reports
// whether the ghostscript-compressed PDF still has the expected number of
// pages. pdfcpu is deliberately used only for this inspection, never for
// encryption — see DESIGN.md for why the teacher's pdfcpu-based AES
// encryption was dropped in favor of the ghostscript subprocess.
func ValidatePageCount(pdfPath string, want int) error {
	got, err := api.PageCountFile(pdfPath)
	if err != nil {
		return apperr.Internalf("count pages in %s: %v", pdfPath, err)
	}
	if got != want {
		return apperr.Internalf("PDF %s has %d pages, expected %d", pdfPath, got, want)
	}
	return nil
}
