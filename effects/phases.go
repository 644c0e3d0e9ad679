package effects

import (
	"context"
	"math"
	"time"
)

// sweep fills the strip from the first to the last LED and empties it
// again from the last to the first. The moving edge is SweepWidth LEDs
// wide and fades in linearly so the motion looks continuous.
func (e *Engine) sweep(ctx context.Context, budget time.Duration, failures *int) error {
	color := LedFromRGB(e.celebration.SweepRGB)
	width := float64(max(e.celebration.SweepWidth, 1))
	travel := float64(len(e.frame)-1) + width

	start := e.now()
	for {
		elapsed := e.now().Sub(start)
		if elapsed >= budget {
			return nil
		}
		progress := float64(elapsed) / float64(budget)
		// 0 -> 1 -> 0 over the budget
		head := (1 - math.Abs(2*progress-1)) * travel
		SweepFrame(e.frame, color, head, width)
		e.show(failures)
		if err := sleep(ctx, min(sweepFrameDelay, budget-elapsed)); err != nil {
			return err
		}
	}
}

// SweepFrame lights every LED left of head with color. The width LEDs
// just behind head get a linear ramp from dark to full.
func SweepFrame(leds []Led, color Led, head, width float64) {
	for i := range leds {
		leds[i] = color.Scale((head - float64(i)) / width)
	}
}

// strobe flashes a random subset of positions every FlashInterval, the
// rest of the strip stays dark.
func (e *Engine) strobe(ctx context.Context, budget time.Duration, failures *int) error {
	color := LedFromRGB(e.celebration.FlashRGB)
	count := max(1, int(math.Round(float64(len(e.frame))*e.celebration.StrobeDensity)))

	start := e.now()
	for {
		elapsed := e.now().Sub(start)
		if elapsed >= budget {
			return nil
		}
		StrobeFrame(e.frame, color, e.rng.Perm(len(e.frame))[:min(count, len(e.frame))])
		e.show(failures)
		if err := sleep(ctx, min(e.celebration.FlashInterval, budget-elapsed)); err != nil {
			return err
		}
	}
}

// StrobeFrame clears leds and sets the given positions to color.
func StrobeFrame(leds []Led, color Led, positions []int) {
	Fill(leds, Led{})
	for _, p := range positions {
		leds[p] = color
	}
}
