package platform

import (
	"fmt"
	"slices"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/effects"
)

// segment is a run of physical LEDs that shows the frame positions
// firstLed..lastLed, optionally mirrored.
type segment struct {
	firstLed int
	lastLed  int
	reverse  bool
}

// layout maps logical frames onto the physical chain. LEDs not covered by
// any segment stay dark.
type layout struct {
	total    int
	segments []segment
	buf      []effects.Led
}

func newLayout(display c.DisplayConfig) (*layout, error) {
	l := &layout{
		total: display.LedsTotal,
		buf:   make([]effects.Led, display.LedsTotal),
	}
	if len(display.LedSegments) == 0 {
		l.segments = []segment{{firstLed: 0, lastLed: display.LedsTotal - 1}}
		return l, nil
	}

	used := make([]bool, display.LedsTotal)
	for _, cfg := range display.LedSegments {
		first, last := cfg.FirstLed, cfg.LastLed
		if first > last {
			first, last = last, first
		}
		if first < 0 || last >= display.LedsTotal {
			return nil, fmt.Errorf("segment [%d, %d] exceeds %d LEDs", first, last, display.LedsTotal)
		}
		for i := first; i <= last; i++ {
			if used[i] {
				return nil, fmt.Errorf("overlapping display segments at index %d", i)
			}
			used[i] = true
		}
		l.segments = append(l.segments, segment{firstLed: first, lastLed: last, reverse: cfg.Reverse})
	}
	slices.SortFunc(l.segments, func(a, b segment) int { return a.firstLed - b.firstLed })
	return l, nil
}

// apply returns the physical LED values for frame. The returned slice is
// reused by the next call.
func (l *layout) apply(frame []effects.Led) []effects.Led {
	clear(l.buf)
	for _, seg := range l.segments {
		for i := seg.firstLed; i <= seg.lastLed && i < len(frame); i++ {
			src := i
			if seg.reverse {
				src = seg.lastLed - (i - seg.firstLed)
			}
			l.buf[i] = frame[src]
		}
	}
	return l.buf
}
