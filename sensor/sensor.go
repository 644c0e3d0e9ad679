// Package sensor reads distances from an HC-SR04 style ultrasonic
// rangefinder: a short pulse on the trigger line makes the module emit a
// burst and raise the echo line for as long as the sound took to come back.
//
// All waiting on the echo line is a bounded spin against an explicit
// deadline. There is no other way to abort a measurement, and a missing or
// unterminated echo is an ordinary outcome reported as a timed out sample.
package sensor

import (
	"fmt"
	"time"
)

const (
	// CMPerSecond converts echo high time to distance: half the round
	// trip at roughly 343 m/s.
	CMPerSecond = 17150.0
	// TriggerPulse is the width of the pulse that starts a measurement.
	TriggerPulse = 10 * time.Microsecond
)

// TriggerLine is the digital output that starts a measurement.
type TriggerLine interface {
	High()
	Low()
}

// EchoLine is the digital input carrying the echo pulse.
type EchoLine interface {
	IsHigh() bool
}

// Clock abstracts time so the timing sensitive parts can run against a
// fake in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Status classifies a sample.
type Status int

const (
	StatusOK Status = iota
	// StatusTimeout means the echo did not rise or did not fall in time.
	StatusTimeout
	// StatusOutOfRange means a complete echo was measured but the distance
	// lies outside the valid window and is treated as noise.
	StatusOutOfRange
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusOutOfRange:
		return "out-of-range"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// DistanceSample is one measurement. Value is only meaningful for
// StatusOK and StatusOutOfRange.
type DistanceSample struct {
	Value     float64
	Status    Status
	Timestamp time.Time
}

// Valid reports whether the sample may be used by detection logic.
func (s DistanceSample) Valid() bool {
	return s.Status == StatusOK
}

func (s DistanceSample) String() string {
	if s.Status == StatusTimeout {
		return "None"
	}
	return fmt.Sprintf("%5.1f cm", s.Value)
}

// ValidRange is the open interval (Min, Max) of plausible readings in cm.
type ValidRange struct {
	Min float64
	Max float64
}

func (r ValidRange) Contains(cm float64) bool {
	return cm > r.Min && cm < r.Max
}

// Sampler produces one distance sample per call.
type Sampler interface {
	Sample(timeout time.Duration) DistanceSample
}

// WaitForLevel spins until line reads high (or low, for high == false) or
// deadline passes. It returns the time the level was observed, or the
// time the deadline was detected together with false.
func WaitForLevel(line EchoLine, high bool, deadline time.Time, clock Clock) (time.Time, bool) {
	for {
		now := clock.Now()
		if line.IsHigh() == high {
			return now, true
		}
		if now.After(deadline) {
			return now, false
		}
	}
}

// RangeSensor owns the trigger and echo lines of one rangefinder.
type RangeSensor struct {
	trigger TriggerLine
	echo    EchoLine
	clock   Clock
	settle  time.Duration
	valid   ValidRange
}

// NewRangeSensor creates a sensor. settle is the quiet time with the
// trigger held low before each pulse, which keeps a late echo of the
// previous measurement from being picked up.
func NewRangeSensor(trigger TriggerLine, echo EchoLine, clock Clock, settle time.Duration, valid ValidRange) *RangeSensor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RangeSensor{
		trigger: trigger,
		echo:    echo,
		clock:   clock,
		settle:  settle,
		valid:   valid,
	}
}

// Sample runs one full trigger/echo cycle. Each of the two edge waits is
// bounded by timeout.
func (s *RangeSensor) Sample(timeout time.Duration) DistanceSample {
	s.trigger.Low()
	s.clock.Sleep(s.settle)

	s.trigger.High()
	s.clock.Sleep(TriggerPulse)
	s.trigger.Low()

	start := s.clock.Now()
	rise, ok := WaitForLevel(s.echo, true, start.Add(timeout), s.clock)
	if !ok {
		return DistanceSample{Status: StatusTimeout, Timestamp: rise}
	}
	fall, ok := WaitForLevel(s.echo, false, rise.Add(timeout), s.clock)
	if !ok {
		return DistanceSample{Status: StatusTimeout, Timestamp: fall}
	}

	cm := fall.Sub(rise).Seconds() * CMPerSecond
	sample := DistanceSample{Value: cm, Status: StatusOK, Timestamp: fall}
	if !s.valid.Contains(cm) {
		sample.Status = StatusOutOfRange
	}
	return sample
}
