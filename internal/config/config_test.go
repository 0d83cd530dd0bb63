package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer os.Chdir(orig)

	// No config file, no repository set -> Load fills defaults but still
	// fails validation because Repository is required.
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Fatal("expected validation error for missing repository")
	}
}

func TestLoadWithYAMLFile(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer os.Chdir(orig)

	path := filepath.Join(dir, "fossilgo.yaml")
	content := "repository: ./repo.fossil\nhash_policy: sha3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Repository != "./repo.fossil" {
		t.Fatalf("expected repository path, got %q", cfg.Repository)
	}
	if cfg.HashPolicy != "sha3" {
		t.Fatalf("expected sha3 hash policy, got %q", cfg.HashPolicy)
	}
	if cfg.Bind == "" {
		t.Fatal("expected bind default to be filled")
	}
	if cfg.Sync.MaxConcurrentSessions != 8 {
		t.Fatalf("expected default max concurrent sessions 8, got %d", cfg.Sync.MaxConcurrentSessions)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{Repository: "x"}
	Normalize(cfg)
	if cfg.HashPolicy != "auto" {
		t.Fatalf("expected default hash policy auto, got %s", cfg.HashPolicy)
	}
	if cfg.DeltaMaxDepth != 32 {
		t.Fatalf("expected default delta depth 32, got %d", cfg.DeltaMaxDepth)
	}
	if cfg.ReconstructionCacheSize != 256 {
		t.Fatalf("expected default cache size 256, got %d", cfg.ReconstructionCacheSize)
	}
}

func TestValidateRejectsBadHashPolicy(t *testing.T) {
	cfg := &Config{Repository: "x", HashPolicy: "bogus"}
	Normalize(cfg) // non-empty HashPolicy is left untouched by Normalize
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for bad hash policy")
	}
}

func TestValidateRejectsMissingRepository(t *testing.T) {
	cfg := &Config{}
	Normalize(cfg)
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing repository")
	}
}

func TestRetryPolicyDerivation(t *testing.T) {
	cfg := &Config{Repository: "x"}
	Normalize(cfg)
	rp := cfg.RetryPolicy()
	if err := rp.Validate(); err != nil {
		t.Fatalf("expected valid retry policy, got error: %v", err)
	}
}

func TestInitWritesExampleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fossilgo.yaml")
	if err := Init(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if err := Init(path, false); err == nil {
		t.Fatal("expected error when file exists and force=false")
	}
	if err := Init(path, true); err != nil {
		t.Fatalf("expected force overwrite to succeed: %v", err)
	}
}
