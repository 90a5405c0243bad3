package config

import "testing"

func TestFromEnvironmentDefaults(t *testing.T) {
	t.Setenv("ESCOREDUMP_VERBOSE", "")
	t.Setenv("ESCOREDUMP_TMPDIR", "")
	t.Setenv("ESCOREDUMP_APP_ELF", "")

	cfg := FromEnvironment()
	if cfg.Verbose {
		t.Error("Verbose should default to false")
	}
	if cfg.TempDir == "" {
		t.Error("TempDir should default to os.TempDir(), not empty")
	}
	if cfg.DefaultAppImage != "" {
		t.Error("DefaultAppImage should default to empty")
	}
}

func TestFromEnvironmentOverrides(t *testing.T) {
	t.Setenv("ESCOREDUMP_VERBOSE", "true")
	t.Setenv("ESCOREDUMP_TMPDIR", "/tmp/escoredump-test")
	t.Setenv("ESCOREDUMP_APP_ELF", "/tmp/app.elf")

	cfg := FromEnvironment()
	if !cfg.Verbose {
		t.Error("Verbose should be true when ESCOREDUMP_VERBOSE=true")
	}
	if cfg.TempDir != "/tmp/escoredump-test" {
		t.Errorf("TempDir = %q, want /tmp/escoredump-test", cfg.TempDir)
	}
	if cfg.DefaultAppImage != "/tmp/app.elf" {
		t.Errorf("DefaultAppImage = %q, want /tmp/app.elf", cfg.DefaultAppImage)
	}
}
