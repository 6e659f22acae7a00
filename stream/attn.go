package stream

import (
	"math"

	"midi2psg/t6w28"
	"midi2psg/transform"
)

// VelocityAttn maps a MIDI velocity onto the driver's attenuation range:
// velocity 127 gives minAttn (loudest), velocity 1 gives maxAttn, clamped to
// the hardware's 0..15.
func VelocityAttn(velocity, minAttn, maxAttn int) int {
	if velocity <= 0 {
		velocity = 1
	}
	if velocity > 127 {
		velocity = 127
	}
	scale := 1.0 - float64(velocity)/127.0
	attn := int(math.Round(float64(minAttn) + float64(maxAttn-minAttn)*scale))
	if attn < 0 {
		return 0
	}
	if attn > 15 {
		return 15
	}
	return attn
}

// EncodeAttn builds the companion attenuation stream for a mono voice:
// (attenuation, run-length) pairs aligned with the note stream, terminated
// by 0xFF (attenuation values stay within 0..15, leaving 0xFF free).
func EncodeAttn(notes []transform.FrameNote, minAttn, maxAttn int) []byte {
	var out []byte
	for _, n := range notes {
		dur := n.Duration
		if dur < 1 {
			dur = 1
		}
		attn := byte(VelocityAttn(n.Velocity, minAttn, maxAttn))
		for dur > 0 {
			chunk := dur
			if chunk > t6w28.MaxRunLength {
				chunk = t6w28.MaxRunLength
			}
			out = append(out, attn, byte(chunk))
			dur -= chunk
		}
	}
	return append(out, 0xFF)
}
