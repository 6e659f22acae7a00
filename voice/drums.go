package voice

import "midi2psg/transform"

// GM percussion keys the SNK drum mapping understands.
const (
	kickAcoustic  = 35
	kickStandard  = 36
	snareAcoustic = 38
	snareElectric = 40
	hatClosed     = 42
	hatPedal      = 44
	hatOpen       = 46
)

// Noise generator indexes for the mapped hits (stored as 1..8 in streams).
const (
	snareNoiseIndex = 2
	hatNoiseIndex   = 5
)

// MapDrums converts noise-channel notes into an SNK-style mix: kicks become
// a short tone thump at the table base on channel 0, snares and hats become
// short noise hits, everything else is dropped and counted. Tone output is
// merged back into the tone candidate pool; noise output feeds the noise
// stream directly.
func MapDrums(noiseNotes []transform.FrameNote, baseNote int) (tone, noise []transform.FrameNote, dropped int) {
	for _, n := range noiseNotes {
		switch n.Key {
		case kickAcoustic, kickStandard:
			vel := n.Velocity
			if vel < 100 {
				vel = 100
			}
			tone = append(tone, transform.FrameNote{
				Start:    n.Start,
				Duration: clampDuration(n.Duration, 6),
				Key:      baseNote,
				Channel:  0,
				Velocity: vel,
			})
		case snareAcoustic, snareElectric:
			noise = append(noise, transform.FrameNote{
				Start:    n.Start,
				Duration: clampDuration(n.Duration, 4),
				Key:      snareNoiseIndex,
				Channel:  n.Channel,
				Velocity: n.Velocity,
			})
		case hatClosed, hatPedal, hatOpen:
			noise = append(noise, transform.FrameNote{
				Start:    n.Start,
				Duration: clampDuration(n.Duration, 2),
				Key:      hatNoiseIndex,
				Channel:  n.Channel,
				Velocity: n.Velocity,
			})
		default:
			dropped++
		}
	}
	return tone, noise, dropped
}

// clampDuration bounds a hit to [1, max] frames.
func clampDuration(d, max int) int {
	if d < 1 {
		d = 1
	}
	if d > max {
		d = max
	}
	return d
}
