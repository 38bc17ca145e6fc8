package config

import (
	"os"
	"path/filepath"
	"testing"

	"stashkit/internal/stash"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STASH_BACKEND", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.Defaults != stash.DefaultOptions() {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STASH_BACKEND", "s3")
	t.Setenv("STASH_S3_ENDPOINT", "minio:9000")
	t.Setenv("STASH_S3_ACCESS_KEY", "ak")
	t.Setenv("STASH_S3_SECRET_KEY", "sk")
	t.Setenv("STASH_DEFAULTS_RETENTION_DAYS", "14")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendS3 {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.S3.Endpoint != "minio:9000" || cfg.S3.AccessKey != "ak" {
		t.Fatalf("s3 config = %+v", cfg.S3)
	}
	if cfg.Defaults.RetentionDays != 14 {
		t.Fatalf("retention = %d", cfg.Defaults.RetentionDays)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("STASH_BACKEND", "")
	yaml := `backend: http
http:
  base_url: http://stashd:8080
defaults:
  retention_days: 7
  compression_level: 9
`
	if err := os.WriteFile(filepath.Join(dir, "stash.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendHTTP || cfg.HTTP.BaseURL != "http://stashd:8080" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Defaults.RetentionDays != 7 || cfg.Defaults.CompressionLevel != 9 {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STASH_BACKEND", "tape")
	if _, err := Load(""); err == nil {
		t.Fatal("want error for unknown backend")
	}
}

func TestLoadRejectsBadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STASH_BACKEND", "memory")
	t.Setenv("STASH_DEFAULTS_RETENTION_DAYS", "365")
	if _, err := Load(""); err == nil {
		t.Fatal("want error for out-of-range retention")
	}
}

func TestBuildStoreRequiresBackendSettings(t *testing.T) {
	cfg := &Config{Backend: BackendPostgres}
	if _, err := cfg.BuildStore(); err == nil {
		t.Fatal("want error for missing dsn")
	}
	cfg = &Config{Backend: BackendHTTP}
	if _, err := cfg.BuildStore(); err == nil {
		t.Fatal("want error for missing base url")
	}
}
