// Package effects renders the light animations of the cup: a green
// shimmer while idle and a timed celebration after a hole.
//
// Every frame is computed completely into a buffer and pushed to the strip
// in one Show call, so an observer never sees a partially updated frame.
package effects

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	c "lautenbacher.net/puttcup/config"
)

const (
	sweepFrameDelay = 15 * time.Millisecond
	// how often the idle shimmer asks the night dimmer for the brightness
	dimmerCheckTicks = 600
)

// Strip is a chain of addressable LEDs. Show must take over the values of
// leds before returning, callers reuse the slice.
type Strip interface {
	Len() int
	Show(leds []Led) error
}

type Engine struct {
	strip       Strip
	rng         *rand.Rand
	ambient     c.AmbientConfig
	celebration c.CelebrationConfig
	dimmer      *NightDimmer
	brightness  float64
	frame       []Led
	out         []Led
	now         func() time.Time
}

// NewEngine creates an engine drawing onto strip. rng drives all the
// randomness of the animations, pass a seeded generator for reproducible
// output.
func NewEngine(strip Strip, rng *rand.Rand, ambient c.AmbientConfig, celebration c.CelebrationConfig) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e := &Engine{
		strip:       strip,
		rng:         rng,
		ambient:     ambient,
		celebration: celebration,
		brightness:  ambient.Brightness,
		frame:       make([]Led, strip.Len()),
		out:         make([]Led, strip.Len()),
		now:         time.Now,
	}
	if ambient.NightDim.Enabled {
		e.dimmer = NewNightDimmer(ambient.NightDim)
		e.brightness = e.dimmer.Brightness(e.now(), ambient.Brightness)
	}
	return e
}

func (e *Engine) Len() int {
	return len(e.frame)
}

// RenderIdle draws one frame of the idle shimmer: every LED gets a random
// green in [MinGreen, MaxGreen) scaled by the ambient brightness.
func (e *Engine) RenderIdle(tick int) error {
	if e.dimmer != nil && tick%dimmerCheckTicks == 0 {
		e.brightness = e.dimmer.Brightness(e.now(), e.ambient.Brightness)
	}
	span := e.ambient.MaxGreen - e.ambient.MinGreen
	for i := range e.frame {
		g := e.ambient.MinGreen + e.rng.IntN(span)
		e.frame[i] = Led{Green: byte(g)}
	}
	return e.push(e.brightness)
}

// Clear switches every LED off.
func (e *Engine) Clear() error {
	Fill(e.frame, Led{})
	return e.push(1)
}

// RunCelebration plays the configured phases back to back, each getting
// its share of duration, and clears the strip afterwards. Frames are scaled
// by the same brightness as the idle shimmer. It returns early
// with the context error when ctx is cancelled; the strip is cleared in
// that case too.
func (e *Engine) RunCelebration(ctx context.Context, duration time.Duration) error {
	defer func() {
		if err := e.Clear(); err != nil {
			slog.Warn("Failed to clear strip after celebration", "error", err)
		}
	}()

	if e.dimmer != nil {
		e.brightness = e.dimmer.Brightness(e.now(), e.ambient.Brightness)
	}

	total := 0.0
	for _, p := range e.celebration.Phases {
		total += p.Share
	}
	if total <= 0 || duration <= 0 {
		return nil
	}

	failures := 0
	for _, p := range e.celebration.Phases {
		budget := time.Duration(float64(duration) * p.Share / total)
		var err error
		switch p.Name {
		case "sweep":
			err = e.sweep(ctx, budget, &failures)
		case "strobe":
			err = e.strobe(ctx, budget, &failures)
		default:
			err = fmt.Errorf("unknown celebration phase %q", p.Name)
		}
		if err != nil {
			return err
		}
	}
	if failures > 0 {
		slog.Warn("Strip updates failed during celebration", "count", failures)
	}
	return nil
}

// push scales the frame into the output buffer and hands it to the strip.
func (e *Engine) push(factor float64) error {
	for i, led := range e.frame {
		e.out[i] = led.Scale(factor)
	}
	return e.strip.Show(e.out)
}

func (e *Engine) show(failures *int) {
	if err := e.push(e.brightness); err != nil {
		if *failures == 0 {
			slog.Warn("Failed to update strip", "error", err)
		}
		*failures++
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
