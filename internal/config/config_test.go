package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LETSEARCH_HOME", "")
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")
	// envconfig treats a set-but-empty PORT as a value to parse, so unset it
	// (t.Setenv above restores it after the test).
	os.Unsetenv("PORT")

	cfg, err := LoadConfig("nonexistent.env")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	wantHome, _ := filepath.Abs(DefaultHome)
	if cfg.Home() != wantHome {
		t.Errorf("Home() = %q, want %q", cfg.Home(), wantHome)
	}
	if cfg.LogFormat() != LogFormatPretty {
		t.Errorf("LogFormat() = %q, want pretty", cfg.LogFormat())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home")

	t.Setenv("LETSEARCH_HOME", home)
	t.Setenv("HF_TOKEN", "hf_xxx")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig("nonexistent.env")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HFToken() != "hf_xxx" {
		t.Errorf("HFToken() = %q, want hf_xxx", cfg.HFToken())
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9090", cfg.Addr())
	}
	if cfg.LogFormat() != LogFormatJSON {
		t.Errorf("LogFormat() = %q, want json", cfg.LogFormat())
	}
}

func TestAppConfig_EnsureHome(t *testing.T) {
	dir := t.TempDir()
	cfg := NewAppConfigWithOptions(WithHome(filepath.Join(dir, "letsearch")))

	if err := cfg.EnsureHome(); err != nil {
		t.Fatalf("EnsureHome: %v", err)
	}
	if _, err := os.Stat(cfg.CollectionsDir()); err != nil {
		t.Errorf("collections dir not created: %v", err)
	}
	if _, err := os.Stat(cfg.ModelsDir()); err != nil {
		t.Errorf("models dir not created: %v", err)
	}
}

func TestNewAppConfigWithOptions_Defaults(t *testing.T) {
	cfg := NewAppConfigWithOptions()

	if cfg.Host() != DefaultHost {
		t.Errorf("Host() = %q, want %q", cfg.Host(), DefaultHost)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
}
