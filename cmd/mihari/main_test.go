package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		allowed []string
		want    bool
	}{
		{"listed extension", ".mp4", []string{".mp4", ".mov"}, true},
		{"unlisted extension", ".txt", []string{".mp4", ".mov"}, false},
		{"case insensitive", ".MP4", []string{".mp4"}, true},
		{"allowed without dot", ".webm", []string{"webm"}, true},
		{"empty allowed list accepts all", ".anything", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extensionAllowed(tt.ext, tt.allowed)
			if got != tt.want {
				t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestCollectVideoInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.webm", "notes.txt", "c.mp4.probe.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "d.mov"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	inputs := collectVideoInputs(dir, []string{".mp4", ".webm", ".mov"}, "promo")
	if len(inputs) != 3 {
		t.Fatalf("collectVideoInputs() returned %d inputs, want 3", len(inputs))
	}
	for _, input := range inputs {
		if input.Metadata["title"] != "promo" {
			t.Errorf("input %s missing title metadata: %v", input.VideoPath, input.Metadata)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	if _, ok := parseOutputFormat("text"); !ok {
		t.Error("text should be a valid output format")
	}
	if _, ok := parseOutputFormat("json"); !ok {
		t.Error("json should be a valid output format")
	}
	if _, ok := parseOutputFormat("yaml"); ok {
		t.Error("yaml should not be a valid output format")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}
