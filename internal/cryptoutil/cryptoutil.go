// Package cryptoutil implements the upstream API's request-signing and
// response-decryption primitives: MD5-derived tokens and AES-256-ECB with
// PKCS#7 padding. golang.org/x/crypto deliberately omits ECB mode (it is
// considered unsafe for general use), and no third-party ECB implementation
// appears anywhere in the example pack, so the block loop below is hand
// rolled directly over stdlib crypto/aes — the one place this project
// reaches for the standard library by necessity rather than preference.
package cryptoutil

import (
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"github.com/jm-archive/jm-downloader/internal/apperr"
)

const dataSecret = "185Hcomic3PAPP7R"

// AppVersion is the fixed tokenparam version literal the upstream app sends.
const AppVersion = "2.0.13"

// Token computes token(ts, secret) = md5_hex(decimal(ts) + secret).
func Token(ts int64, secret string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(ts, 10) + secret))
	return hex.EncodeToString(sum[:])
}

// TokenParam computes tokenparam(ts) = decimal(ts) + "," + AppVersion.
func TokenParam(ts int64) string {
	return strconv.FormatInt(ts, 10) + "," + AppVersion
}

// Decrypt base64-decodes b64, derives an AES-256 key from ts via MD5 hex,
// decrypts under ECB, strips PKCS#7 padding, and returns the UTF-8 payload.
func Decrypt(ts int64, b64 string) (string, error) {
	cipherBytes, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", apperr.Internalf("base64 decode response payload: %v", err)
	}
	if len(cipherBytes) == 0 || len(cipherBytes)%aes.BlockSize != 0 {
		return "", apperr.Internalf("ciphertext length %d is not a multiple of the AES block size", len(cipherBytes))
	}

	keySum := md5.Sum([]byte(strconv.FormatInt(ts, 10) + dataSecret))
	key := []byte(hex.EncodeToString(keySum[:]))

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperr.Internalf("build AES cipher: %v", err)
	}

	plain := make([]byte, len(cipherBytes))
	for off := 0; off < len(cipherBytes); off += aes.BlockSize {
		block.Decrypt(plain[off:off+aes.BlockSize], cipherBytes[off:off+aes.BlockSize])
	}

	unpadded, err := stripPKCS7(plain)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperr.Internalf("cannot unpad empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > len(data) {
		return nil, apperr.Internalf("invalid PKCS#7 padding length %d", padLen)
	}
	return data[:len(data)-padLen], nil
}

// MD5Hex is the plain md5_hex helper used by the descrambler for its
// content-addressed block-count derivation.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
