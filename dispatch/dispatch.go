// Package dispatch runs the celebration across all effectors: the
// co-processor, the speaker and the local strip.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/puttcup/announce"
	"lautenbacher.net/puttcup/detector"
	"lautenbacher.net/puttcup/peripheral"
)

type Sender interface {
	Send(cmd peripheral.Command) bool
}

type Sounds interface {
	PlayRandom(ctx context.Context) (string, bool)
}

type Lights interface {
	RunCelebration(ctx context.Context, duration time.Duration) error
}

type Dispatcher struct {
	link      Sender
	sounds    Sounds
	lights    Lights
	announcer announce.Announcer
	wg        sync.WaitGroup
}

// New creates a dispatcher. sounds and announcer may be nil.
func New(link Sender, sounds Sounds, lights Lights, announcer announce.Announcer) *Dispatcher {
	return &Dispatcher{
		link:      link,
		sounds:    sounds,
		lights:    lights,
		announcer: announcer,
	}
}

// Celebrate tells the co-processor to celebrate, starts a sound, runs the
// light show for what is left of budget and sends the co-processor back to
// idle. It blocks for about budget. No step can keep the others from
// running.
func (d *Dispatcher) Celebrate(ctx context.Context, ev detector.TriggerEvent, budget time.Duration) {
	start := time.Now()
	slog.Info("Celebrating", "distance", ev.Distance, "streak", ev.Streak)

	step("notify peripheral", func() {
		d.link.Send(peripheral.CmdCelebrate)
	})

	var sound string
	if d.sounds != nil {
		step("play sound", func() {
			sound, _ = d.sounds.PlayRandom(ctx)
		})
	}

	if d.announcer != nil {
		msg := announce.NewEvent(ev.At, ev.Distance, ev.Streak)
		msg.Sound = sound
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			step("announce", func() {
				if err := d.announcer.Announce(msg); err != nil {
					slog.Warn("Announcing hole failed", "id", msg.ID, "error", err)
					return
				}
				slog.Info("Announced hole", "id", msg.ID)
			})
		}()
	}

	step("light show", func() {
		remaining := budget - time.Since(start)
		err := d.lights.RunCelebration(ctx, remaining)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Light show ended early", "error", err)
		}
	})

	step("restore peripheral", func() {
		d.link.Send(peripheral.CmdIdle)
	})
}

// Wait blocks until pending announcements are done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// step runs fn and turns a panic into a log line.
func step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Celebration step failed", "step", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
