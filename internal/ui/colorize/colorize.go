package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// IsDisabled returns true if colors are disabled via environment.
func IsDisabled() bool {
	return os.Getenv("ESCOREDUMP_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

func getHexLexer() chroma.Lexer {
	if l := lexers.Get("nasm"); l != nil {
		return l
	}
	return lexers.Fallback
}

func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// HexDump colorizes a raw hex byte dump (e.g. of a register file or TCB)
// using the same chroma pipeline the upstream teacher project uses for
// assembly: tokenize, apply the disasm-dark style, format for the
// terminal.
func HexDump(hex string) string {
	if IsDisabled() {
		return hex
	}
	lexer := getHexLexer()
	if lexer == nil {
		return hex
	}
	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, hex)
	if err != nil {
		return hex
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return hex
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Address formats an address in yellow.
func Address(addr uint32) string {
	if IsDisabled() {
		return fmt.Sprintf("%08X", addr)
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%08X\033[0m", addr)
}

// Flag formats a task-status flag name in red (high visibility).
func Flag(name string) string {
	if IsDisabled() {
		return name
	}
	return fmt.Sprintf("\033[38;2;255;80;80m%s\033[0m", name)
}

// OK formats a clean/correct status in green.
func OK(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;120;220;120m%s\033[0m", s)
}

// Border formats border characters in dark gray.
func Border(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;80;80;80m%s\033[0m", s)
}
