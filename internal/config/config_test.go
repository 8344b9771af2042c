package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alekratz/sbl/internal/optimize"
)

func writeTempConfig(t *testing.T, text string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, RCFileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %s", err)
	}
	return path
}

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load on a missing file should not error, got %s", err)
	}
	if len(cfg.SearchPaths) != 0 || cfg.Optimize != nil {
		t.Errorf("expected an empty Config, got %+v", cfg)
	}
}

func TestLoadParsesSearchPathsAndOptimizeAndFFI(t *testing.T) {
	path := writeTempConfig(t, `
search_paths:
  - ./vendor
  - ./lib
optimize:
  inline: true
  store: false
  push_compress: true
  absolute_jumps: true
ffi:
  libs:
    m: libm.so.6
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if len(cfg.SearchPaths) != 2 || cfg.SearchPaths[0] != "./vendor" {
		t.Errorf("unexpected SearchPaths: %v", cfg.SearchPaths)
	}
	flags := cfg.OptimizeFlagsOrDefault()
	if !flags.Inline || flags.Store || !flags.PushCompress || !flags.AbsoluteJumps {
		t.Errorf("unexpected optimizer flags: %+v", flags)
	}
	if got := cfg.ResolveLib("m"); got != "libm.so.6" {
		t.Errorf("ResolveLib(m) = %q, want libm.so.6", got)
	}
	if got := cfg.ResolveLib("unaliased"); got != "unaliased" {
		t.Errorf("ResolveLib of an unaliased name should pass through unchanged, got %q", got)
	}
}

func TestOptimizeFlagsOrDefaultFallsBackWhenUnset(t *testing.T) {
	cfg := &Config{}
	flags := cfg.OptimizeFlagsOrDefault()
	want := optimize.Default()
	if flags != want {
		t.Errorf("OptimizeFlagsOrDefault() = %+v, want the package default %+v", flags, want)
	}
}

func TestLoadInvalidYAMLIsError(t *testing.T) {
	path := writeTempConfig(t, "search_paths: [this is not valid: yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error parsing malformed YAML")
	}
}

func TestSearchPathsFromEnvSplitsOSPathList(t *testing.T) {
	joined := "/a" + string(os.PathListSeparator) + "/b"
	got := SearchPathsFromEnv(joined)
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("SearchPathsFromEnv(%q) = %v", joined, got)
	}
	if got := SearchPathsFromEnv(""); got != nil {
		t.Errorf("SearchPathsFromEnv(\"\") = %v, want nil", got)
	}
}
