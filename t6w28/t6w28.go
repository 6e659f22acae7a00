// Package t6w28 holds the hardware constants of the NGPC T6W28 sound chip as
// the BGM driver expects them: the tone divisor table and the byte codes used
// inside encoded streams.
package t6w28

// Stream byte codes. 0x00 terminates a stream; 0xFF is a rest run. Codes
// 0xF0..0xF4 are FX opcodes that reconfigure a voice without advancing time.
const (
	EndMarker = 0x00
	RestCode  = 0xFF

	OpSetAttn  = 0xF0
	OpSetEnv   = 0xF1
	OpSetVib   = 0xF2
	OpSetSweep = 0xF3
	OpSetInst  = 0xF4
)

// DefaultBaseNote is the MIDI note mapped to table index 1 (A2).
const DefaultBaseNote = 45

// TableSize is the number of entries in NoteTable. Stream note indexes run
// 1..TableSize; 0 is reserved for EndMarker.
const TableSize = 50

// MaxRunLength is the largest frame count one (value, length) pair can carry.
const MaxRunLength = 255

// NoteTable maps table index-1 to the two register bytes of a tone divisor
// (low nibble, high six bits), A2 upward in semitones. Taken from the sound
// driver's sound.asm.
var NoteTable = [TableSize][2]byte{
	{0x08, 0x36}, {0x07, 0x33}, {0x09, 0x30}, {0x0D, 0x2D},
	{0x04, 0x2B}, {0x0D, 0x28}, {0x09, 0x26}, {0x06, 0x24},
	{0x05, 0x22}, {0x06, 0x20}, {0x09, 0x1E}, {0x0E, 0x1C},
	{0x04, 0x1B}, {0x0B, 0x19}, {0x04, 0x18}, {0x0E, 0x16},
	{0x09, 0x15}, {0x06, 0x14}, {0x04, 0x13}, {0x03, 0x12},
	{0x02, 0x11}, {0x03, 0x10}, {0x04, 0x0F}, {0x07, 0x0E},
	{0x0A, 0x0D}, {0x0D, 0x0C}, {0x02, 0x0C}, {0x07, 0x0B},
	{0x0D, 0x0A}, {0x03, 0x0A}, {0x0A, 0x09}, {0x01, 0x09},
	{0x09, 0x08}, {0x01, 0x08}, {0x0A, 0x07}, {0x03, 0x07},
	{0x0D, 0x06}, {0x06, 0x06}, {0x01, 0x06}, {0x0B, 0x05},
	{0x06, 0x05}, {0x01, 0x05}, {0x0D, 0x04}, {0x08, 0x04},
	{0x04, 0x04}, {0x00, 0x04}, {0x0D, 0x03}, {0x09, 0x03},
	{0x06, 0x03}, {0x03, 0x03},
}

// FlatNoteTable returns the table as the interleaved byte sequence the driver
// stores (lo, hi per entry).
func FlatNoteTable() []byte {
	out := make([]byte, 0, TableSize*2)
	for _, pair := range NoteTable {
		out = append(out, pair[0], pair[1])
	}
	return out
}

// NoteIndex converts a MIDI key to a 1-based table index. ok is false when
// the key falls outside the table window [base, base+TableSize).
func NoteIndex(key, base int) (int, bool) {
	idx := key - base
	if idx < 0 || idx >= TableSize {
		return 0, false
	}
	return idx + 1, true
}

// IndexToDivisor packs a 1-based table index into the 10-bit divisor value
// the sweep target field uses. Out-of-range indexes collapse to 1, the
// highest divisor the driver accepts.
func IndexToDivisor(index int) int {
	i := index - 1
	if i < 0 || i >= TableSize {
		return 1
	}
	lo := int(NoteTable[i][0] & 0x0F)
	hi := int(NoteTable[i][1] & 0x3F)
	return hi<<4 | lo
}

// OpcodeWidth reports the full byte width of an FX opcode including its
// operands, or 0 when b is not an opcode.
func OpcodeWidth(b byte) int {
	switch b {
	case OpSetAttn:
		return 2
	case OpSetEnv:
		return 3
	case OpSetVib:
		return 4
	case OpSetSweep:
		return 5
	case OpSetInst:
		return 2
	default:
		return 0
	}
}

// IsOpcode reports whether b starts an FX opcode.
func IsOpcode(b byte) bool {
	return OpcodeWidth(b) > 0
}
