package stream

import "midi2psg/transform"

// FindCommonRest scans frames from minFrame upward and returns the first
// frame at which no voice has a note sounding (half-open spans). ok is false
// when every frame up to totalFrames has something playing.
func FindCommonRest(voices [][]transform.FrameNote, totalFrames, minFrame int) (int, bool) {
	if totalFrames <= 0 {
		return 0, false
	}
	if minFrame < 0 {
		minFrame = 0
	}

	type span struct{ start, end int }
	var intervals [][]span
	for _, notes := range voices {
		var spans []span
		for _, n := range notes {
			if end := n.Start + n.Duration; end > n.Start {
				spans = append(spans, span{n.Start, end})
			}
		}
		intervals = append(intervals, spans)
	}

	for t := minFrame; t < totalFrames; t++ {
		allRest := true
		for _, spans := range intervals {
			for _, s := range spans {
				if s.start <= t && t < s.end {
					allRest = false
					break
				}
			}
			if !allRest {
				break
			}
		}
		if allRest {
			return t, true
		}
	}
	return 0, false
}
