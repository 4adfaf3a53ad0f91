package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

type validatedConfig struct {
	Name string `yaml:"name"`
}

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return os.ErrInvalid
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeConfig(t, "name: demo\ncount: 3\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "demo" || cfg.Count != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CFG_NAME", "from-env")
	path := writeConfig(t, "name: ${CFG_NAME}\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestLoad_ValidatorCalled(t *testing.T) {
	path := writeConfig(t, "name: \"\"\n")
	var cfg validatedConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Count: 7}
	if err := LoadOrDefault(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Count != 7 {
		t.Errorf("cfg = %+v, defaults should survive", cfg)
	}
}

func TestLoadOrDefault_ExistingFileOverrides(t *testing.T) {
	path := writeConfig(t, "name: loaded\n")
	cfg := testConfig{Name: "default"}
	if err := LoadOrDefault(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "loaded" {
		t.Errorf("name = %q", cfg.Name)
	}
}
