// Package colorize provides terminal colorizing for escoredump's inspect
// output: task flags, register hex dumps, and warnings.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	_ = DisasmDark
}

// IDA-style theme colors, reused for the hex-dump highlighter below.
const (
	IDAAddress  = "#808080"
	IDANumber   = "#FF80C0"
	IDALabel    = "#FFC800"
	IDAComment  = "#FF8000"
	IDAHexBytes = "#646464"
)

// DisasmDark colors a hex byte stream the same way a disassembly listing
// would: numbers pink, labels yellow, comments orange, other names sky
// blue, white text on black.
var DisasmDark = styles.Register(chroma.MustNewStyle("disasm-dark", chroma.StyleEntries{
	chroma.Text:                 "#FFFFFF",
	chroma.Background:           "bg:#000000",
	chroma.Comment:              "#FF8000",
	chroma.LiteralNumberHex:     "#FF80C0",
	chroma.LiteralNumberInteger: "#FF80C0",
	chroma.NameLabel:            "#FFC800",
	chroma.Name:                 "#87CEEB",
}))
