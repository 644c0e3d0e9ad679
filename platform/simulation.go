package platform

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"lautenbacher.net/puttcup/sensor"
)

const (
	// Distances of the simulated cup: empty, and with a ball in it.
	EmptyCupCM = 40.0
	BallInCM   = 3.0
	echoDelay  = 300 * time.Microsecond
)

// SimulatedRanger behaves like an HC-SR04 in front of a movable target. It
// implements both the trigger and the echo line: the falling edge of the
// trigger pulse schedules an echo pulse whose width matches the current
// distance. With noise enabled some pulses go missing and some report
// random distances.
type SimulatedRanger struct {
	mu       sync.Mutex
	clock    sensor.Clock
	rng      *rand.Rand
	distance float64
	noise    bool
	triggerH bool
	rise     time.Time
	fall     time.Time
}

func NewSimulatedRanger(clock sensor.Clock, rng *rand.Rand) *SimulatedRanger {
	if clock == nil {
		clock = sensor.SystemClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulatedRanger{clock: clock, rng: rng, distance: EmptyCupCM}
}

func (r *SimulatedRanger) SetDistance(cm float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distance = cm
}

func (r *SimulatedRanger) Distance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distance
}

func (r *SimulatedRanger) Noise() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.noise
}

// ToggleNoise switches noise on or off and returns the new state.
func (r *SimulatedRanger) ToggleNoise() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noise = !r.noise
	return r.noise
}

func (r *SimulatedRanger) High() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggerH = true
}

func (r *SimulatedRanger) Low() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.triggerH {
		return
	}
	r.triggerH = false

	cm := r.distance
	if r.noise {
		switch r.rng.IntN(10) {
		case 0:
			// lost echo
			r.rise, r.fall = time.Time{}, time.Time{}
			return
		case 1:
			cm = r.rng.Float64() * 500
		}
	}
	width := time.Duration(cm / sensor.CMPerSecond * float64(time.Second))
	r.rise = r.clock.Now().Add(echoDelay)
	r.fall = r.rise.Add(width)
}

func (r *SimulatedRanger) IsHigh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rise.IsZero() {
		return false
	}
	now := r.clock.Now()
	return !now.Before(r.rise) && now.Before(r.fall)
}

// Wander moves the target on a random walk between 2 and 60 cm until ctx
// is done, occasionally parking it in the cup. Used when probing without
// hardware.
func (r *SimulatedRanger) Wander(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.rng.IntN(20) == 0 {
				r.distance = BallInCM
			} else {
				r.distance = min(max(r.distance+r.rng.NormFloat64()*2, 2), 60)
			}
			r.mu.Unlock()
		}
	}
}
