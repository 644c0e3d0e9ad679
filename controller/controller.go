// Package controller runs the sense, detect, celebrate loop of the cup.
//
// Everything happens on the goroutine calling Run: a celebration blocks
// sensing until it is over. Cancelling the context ends the loop, and the
// lights are switched off and the co-processor told "off" exactly once on
// every way out.
package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/detector"
	"lautenbacher.net/puttcup/peripheral"
	"lautenbacher.net/puttcup/sensor"
	u "lautenbacher.net/puttcup/util"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeCelebrating
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCelebrating:
		return "celebrating"
	case ModeStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Status is the snapshot published for viewers after every tick.
type Status struct {
	Mode        Mode
	Sample      sensor.DistanceSample
	Streak      int
	Triggers    int
	LastTrigger time.Time
}

type Lights interface {
	RenderIdle(tick int) error
	Clear() error
}

type Celebrator interface {
	Celebrate(ctx context.Context, ev detector.TriggerEvent, budget time.Duration)
}

type Link interface {
	Send(cmd peripheral.Command) bool
	Close() error
}

type Controller struct {
	sampler     sensor.Sampler
	detector    *detector.Detector
	lights      Lights
	celebrator  Celebrator
	link        Link
	closers     []io.Closer
	pollEvery   time.Duration
	echoTimeout time.Duration
	budget      time.Duration
	status      *u.AtomicEvent[Status]
	now         func() time.Time
	cleanup     sync.Once
	tick        int
	triggers    int
}

// New wires a controller. closers are released during shutdown after the
// lights are off, e.g. GPIO and SPI handles.
func New(cfg c.Config, sampler sensor.Sampler, lights Lights, celebrator Celebrator, link Link, closers ...io.Closer) *Controller {
	return &Controller{
		sampler: sampler,
		detector: detector.New(detector.Config{
			ThresholdCM:  cfg.Detection.ThresholdCM,
			RequiredHits: cfg.Detection.RequiredHits,
			Cooldown:     cfg.Detection.Cooldown,
		}),
		lights:      lights,
		celebrator:  celebrator,
		link:        link,
		closers:     closers,
		pollEvery:   cfg.Detection.PollInterval,
		echoTimeout: cfg.Detection.EchoTimeout,
		budget:      cfg.Celebration.Duration,
		status:      u.NewAtomicEvent[Status](),
		now:         time.Now,
	}
}

// Status gives access to the published snapshots.
func (s *Controller) Status() *u.AtomicEvent[Status] {
	return s.status
}

// Run loops until ctx is cancelled and cleans up before returning.
func (s *Controller) Run(ctx context.Context) error {
	defer s.Shutdown()

	slog.Info("Controller started", "poll", s.pollEvery, "threshold", s.detector.Config().ThresholdCM, "hits", s.detector.Config().RequiredHits)
	s.link.Send(peripheral.CmdIdle)
	s.status.Send(Status{Mode: ModeIdle})

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Controller stopping", "triggers", s.triggers)
			return nil
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.pollEvery)
		}
	}
}

// Tick takes one sample and either celebrates or draws one idle frame. A
// panic inside the tick is logged and the loop goes on.
func (s *Controller) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tick failed", "panic", fmt.Sprint(r))
		}
	}()

	sample := s.sampler.Sample(s.echoTimeout)
	ev, fired := s.detector.Observe(sample, s.now())
	s.publish(ModeIdle, sample)
	if sample.Valid() {
		slog.Debug("Sample", "distance", sample.String(), "streak", s.detector.State().Streak)
	}

	if fired {
		s.triggers++
		slog.Info("Ball in the cup", "distance", ev.Distance, "streak", ev.Streak, "count", s.triggers)
		s.publish(ModeCelebrating, sample)
		s.celebrator.Celebrate(ctx, ev, s.budget)
		s.publish(ModeIdle, sample)
		return
	}

	if err := s.lights.RenderIdle(s.tick); err != nil {
		slog.Warn("Idle frame failed", "error", err)
	}
	s.tick++
}

func (s *Controller) publish(mode Mode, sample sensor.DistanceSample) {
	state := s.detector.State()
	s.status.Send(Status{
		Mode:        mode,
		Sample:      sample,
		Streak:      state.Streak,
		Triggers:    s.triggers,
		LastTrigger: state.LastTrigger,
	})
}

// Shutdown switches the lights off, tells the co-processor "off" and
// releases the hardware. Only the first call does anything.
func (s *Controller) Shutdown() {
	s.cleanup.Do(func() {
		if err := s.lights.Clear(); err != nil {
			slog.Warn("Failed to switch lights off", "error", err)
		}
		s.link.Send(peripheral.CmdOff)
		if err := s.link.Close(); err != nil {
			slog.Warn("Failed to close peripheral", "error", err)
		}
		for _, closer := range s.closers {
			if err := closer.Close(); err != nil {
				slog.Warn("Failed to release hardware", "error", err)
			}
		}
		s.status.Update(func(st Status) Status {
			st.Mode = ModeStopped
			return st
		})
		slog.Info("Controller stopped, lights off")
	})
}
