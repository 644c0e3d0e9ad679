// Package detector turns a stream of distance samples into debounced
// "ball in the cup" events.
//
// A sample qualifies when it is valid and strictly closer than the
// threshold. Qualifying samples extend the hit streak, anything else
// resets it. An event fires once the streak has reached the required
// length and more than the cooldown has passed since the previous event.
// Firing resets the streak and stamps the fire time; a celebration that
// outlasts the cooldown therefore does not extend it.
package detector

import (
	"time"

	"lautenbacher.net/puttcup/sensor"
)

type Config struct {
	ThresholdCM  float64
	RequiredHits int
	Cooldown     time.Duration
}

// State is everything the detector remembers between samples. A zero
// LastTrigger means no event has fired yet.
type State struct {
	Streak      int
	LastTrigger time.Time
}

// TriggerEvent describes a confirmed detection.
type TriggerEvent struct {
	At       time.Time
	Distance float64
	Streak   int
}

// Qualifies reports whether sample counts towards the hit streak.
func (c Config) Qualifies(sample sensor.DistanceSample) bool {
	return sample.Valid() && sample.Value < c.ThresholdCM
}

// InCooldown reports whether an event at now would come too soon after the
// previous one.
func (c Config) InCooldown(state State, now time.Time) bool {
	if state.LastTrigger.IsZero() {
		return false
	}
	return now.Sub(state.LastTrigger) <= c.Cooldown
}

// Observe folds one sample into state. It has no side effects.
func Observe(cfg Config, state State, sample sensor.DistanceSample, now time.Time) (bool, State) {
	if cfg.Qualifies(sample) {
		state.Streak++
	} else {
		state.Streak = 0
	}

	if state.Streak >= cfg.RequiredHits && !cfg.InCooldown(state, now) {
		state.Streak = 0
		state.LastTrigger = now
		return true, state
	}
	return false, state
}

// Detector owns a State for the lifetime of the control loop.
type Detector struct {
	cfg   Config
	state State
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Observe feeds sample into the detector and returns the event if one
// fired.
func (d *Detector) Observe(sample sensor.DistanceSample, now time.Time) (TriggerEvent, bool) {
	streak := d.state.Streak + 1
	fired, next := Observe(d.cfg, d.state, sample, now)
	d.state = next
	if !fired {
		return TriggerEvent{}, false
	}
	return TriggerEvent{At: now, Distance: sample.Value, Streak: streak}, true
}

func (d *Detector) State() State {
	return d.state
}

func (d *Detector) Config() Config {
	return d.cfg
}
