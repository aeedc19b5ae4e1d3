// Package config loads the process-lifetime Config from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/jm-archive/jm-downloader/internal/apperr"
)

const (
	defaultAPIDomain      = "www.cdnhth.cc"
	defaultImageDomain    = "cdn-msp2.jmapiproxy2.cc"
	defaultImgConcurrency = 32
)

// Config is the immutable, process-lifetime configuration of the service.
type Config struct {
	Username       string
	Password       string
	APIDomain      string
	ImageDomain    string
	ImgConcurrency int
}

// Load reads and validates Config from the environment. It fails fast with
// an Internal error on a missing credential or a malformed concurrency
// value — this is process-startup validation, not request-time BadRequest.
func Load() (*Config, error) {
	username, err := readRequired("JM_USERNAME")
	if err != nil {
		return nil, err
	}
	password, err := readRequired("JM_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Username:       username,
		Password:       password,
		APIDomain:      readOptional("JM_API_DOMAIN", defaultAPIDomain),
		ImageDomain:    readOptional("JM_IMAGE_DOMAIN", defaultImageDomain),
		ImgConcurrency: defaultImgConcurrency,
	}

	if raw, ok := lookupTrimmed("JM_IMG_CONCURRENCY"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperr.Internalf("parse JM_IMG_CONCURRENCY %q: %v", raw, err)
		}
		if n <= 0 {
			return nil, apperr.Internalf("JM_IMG_CONCURRENCY must be greater than 0, got %d", n)
		}
		cfg.ImgConcurrency = n
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func readRequired(key string) (string, error) {
	v, ok := lookupTrimmed(key)
	if !ok {
		return "", apperr.Internalf("environment variable %s is required and must not be blank", key)
	}
	return v, nil
}

func readOptional(key, def string) string {
	if v, ok := lookupTrimmed(key); ok {
		return v
	}
	return def
}
