// Package emit renders byte streams and tables as assembler or C source
// text, in the exact shapes the sound driver's build expects.
package emit

import (
	"fmt"
	"strings"

	"midi2psg/t6w28"
)

// wrapColumn is where .db / array lines break.
const wrapColumn = 70

// Comment returns the comment leader for the selected output flavor.
func Comment(cArray bool) string {
	if cArray {
		return "//"
	}
	return ";"
}

// StreamASM renders a labeled .db block, one `$XX` literal per byte.
func StreamASM(label string, data []byte) string {
	var b strings.Builder
	b.WriteString(label + ":\n")
	line := "  .db "
	for _, v := range data {
		entry := fmt.Sprintf("$%02X", v)
		if strings.TrimSpace(line) == ".db" {
			line += entry
		} else {
			line += ", " + entry
		}
		if len(line) > wrapColumn {
			b.WriteString(line + "\n")
			line = "  .db "
		}
	}
	if strings.TrimSpace(line) != ".db" {
		b.WriteString(line + "\n")
	}
	return b.String()
}

// StreamC renders a `const unsigned char` array with `0xXX` literals.
// Continuation lines carry a leading comma, matching the driver sources.
func StreamC(label string, data []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "const unsigned char %s[] = {\n", label)
	line := "  "
	for i, v := range data {
		entry := fmt.Sprintf("0x%02X", v)
		if i == 0 {
			line += entry
		} else {
			line += ", " + entry
		}
		if len(line) > wrapColumn {
			b.WriteString(line + "\n")
			line = "  "
		}
	}
	if strings.TrimSpace(line) != "" {
		b.WriteString(line + "\n")
	}
	b.WriteString("};\n")
	return b.String()
}

// Stream picks the flavor.
func Stream(label string, data []byte, cArray bool) string {
	if cArray {
		return StreamC(label, data)
	}
	return StreamASM(label, data)
}

// NoteTable renders the divisor table under the given label.
func NoteTable(label string, cArray bool) string {
	return Stream(label, t6w28.FlatNoteTable(), cArray)
}

// WordConst renders a 16-bit constant declaration.
func WordConst(name string, value int, cArray bool) string {
	if cArray {
		return fmt.Sprintf("const unsigned short %s = %d;\n", name, value)
	}
	return fmt.Sprintf("%s EQU %d\n", name, value)
}
