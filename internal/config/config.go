// Package config holds escoredump's environment-sourced defaults. The
// upstream Python loader reads its flash/partition-tool location from
// IDF_PATH via os.getenv with a fallback (original_source/.../loader.py);
// this package follows the same default-from-env convention, expressed
// with the environment-reading library the pack's own compiler family
// (xyproto-flapc / xyproto-vibe67) uses for the same purpose.
package config

import (
	"os"

	"github.com/xyproto/env/v2"
)

// Config holds CLI-level defaults that can be overridden per invocation by
// flags.
type Config struct {
	// Verbose enables debug-level logging.
	Verbose bool
	// TempDir is the default for the CLI's --tmpdir flag. Synthesis itself
	// creates no temp files.
	TempDir string
	// DefaultAppImage is used when no --app-elf flag is given and the
	// envelope requires application-image verification.
	DefaultAppImage string
}

// FromEnvironment builds a Config from environment variables, falling back
// to sane defaults when unset.
func FromEnvironment() Config {
	return Config{
		Verbose:         env.Bool("ESCOREDUMP_VERBOSE", false),
		TempDir:         env.Str("ESCOREDUMP_TMPDIR", os.TempDir()),
		DefaultAppImage: env.Str("ESCOREDUMP_APP_ELF", ""),
	}
}
