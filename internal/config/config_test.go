package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"JM_USERNAME", "JM_PASSWORD", "JM_API_DOMAIN", "JM_IMAGE_DOMAIN", "JM_IMG_CONCURRENCY"} {
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JM_USERNAME", "alice")
	t.Setenv("JM_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIDomain != defaultAPIDomain {
		t.Errorf("APIDomain = %q, want default", cfg.APIDomain)
	}
	if cfg.ImageDomain != defaultImageDomain {
		t.Errorf("ImageDomain = %q, want default", cfg.ImageDomain)
	}
	if cfg.ImgConcurrency != defaultImgConcurrency {
		t.Errorf("ImgConcurrency = %d, want %d", cfg.ImgConcurrency, defaultImgConcurrency)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("Load() with no credentials should error")
	}
}

func TestLoadInvalidConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv("JM_USERNAME", "alice")
	t.Setenv("JM_PASSWORD", "secret")
	t.Setenv("JM_IMG_CONCURRENCY", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() with zero concurrency should error")
	}
}
