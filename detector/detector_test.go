package detector

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/puttcup/sensor"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var cupConfig = Config{ThresholdCM: 5, RequiredHits: 2, Cooldown: 5 * time.Second}

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func reading(cm float64) sensor.DistanceSample {
	status := sensor.StatusOK
	if !(sensor.ValidRange{Min: 1, Max: 400}).Contains(cm) {
		status = sensor.StatusOutOfRange
	}
	return sensor.DistanceSample{Value: cm, Status: status}
}

var timeout = sensor.DistanceSample{Status: sensor.StatusTimeout}

func TestObserve_CooldownScenario(t *testing.T) {
	d := New(cupConfig)

	_, fired := d.Observe(reading(4.0), at(0))
	assert.False(t, fired)
	ev, fired := d.Observe(reading(3.0), at(0.05))
	require.True(t, fired, "second qualifying sample triggers")
	assert.Equal(t, at(0.05), ev.At)
	assert.Equal(t, 3.0, ev.Distance)
	assert.Equal(t, 2, ev.Streak)
	assert.Equal(t, 0, d.State().Streak, "firing resets the streak")
	assert.Equal(t, at(0.05), d.State().LastTrigger, "cooldown starts at fire time")

	_, fired = d.Observe(reading(4.0), at(0.2))
	assert.False(t, fired)
	_, fired = d.Observe(reading(3.0), at(0.25))
	assert.False(t, fired, "within cooldown")

	assert.Equal(t, 2, d.State().Streak, "the streak keeps counting during the cooldown")

	// The streak carried over from the cooldown is already past
	// RequiredHits, so the first sample of the pair fires.
	ev, fired = d.Observe(reading(4.0), at(6.0))
	require.True(t, fired)
	assert.Equal(t, at(6.0), ev.At)
	assert.Equal(t, 3, ev.Streak)
	assert.Equal(t, 4.0, ev.Distance)

	_, fired = d.Observe(reading(3.0), at(6.05))
	assert.False(t, fired, "the pair triggers exactly once")
	assert.Equal(t, 1, d.State().Streak)
}

func TestObserve_CooldownScenarioWithGap(t *testing.T) {
	d := New(cupConfig)
	d.Observe(reading(4.0), at(0))
	d.Observe(reading(3.0), at(0.05))
	d.Observe(reading(4.0), at(0.2))
	d.Observe(reading(3.0), at(0.25))
	// The ball is taken out again.
	d.Observe(reading(30), at(3))

	_, fired := d.Observe(reading(4.0), at(6.0))
	assert.False(t, fired)
	ev, fired := d.Observe(reading(3.0), at(6.05))
	assert.True(t, fired)
	assert.Equal(t, at(6.05), ev.At)
}

func TestObserve_NthSampleNotBefore(t *testing.T) {
	cfg := Config{ThresholdCM: 5, RequiredHits: 4, Cooldown: time.Second}
	state := State{}
	var fired bool

	for i := 0; i < 3; i++ {
		fired, state = Observe(cfg, state, reading(2), at(float64(i)*0.05))
		assert.False(t, fired, "sample %d must not trigger", i)
	}
	fired, state = Observe(cfg, state, reading(6), at(0.15))
	assert.False(t, fired, "N-1 hits followed by a miss never trigger")
	assert.Equal(t, 0, state.Streak)

	for i := 0; i < 4; i++ {
		fired, state = Observe(cfg, state, reading(2), at(0.2+float64(i)*0.05))
		if i < 3 {
			assert.False(t, fired)
		}
	}
	assert.True(t, fired, "the 4th consecutive hit triggers")
}

func TestObserve_InvalidSamplesReset(t *testing.T) {
	for name, sample := range map[string]sensor.DistanceSample{
		"timeout":  timeout,
		"zero":     reading(0.0),
		"too far":  reading(450.0),
		"at limit": reading(5.0),
		"above":    reading(12.0),
	} {
		t.Run(name, func(t *testing.T) {
			state := State{Streak: 1}
			fired, next := Observe(cupConfig, state, sample, at(1))
			assert.False(t, fired)
			assert.Equal(t, 0, next.Streak)
		})
	}
}

func TestObserve_ThresholdIsStrict(t *testing.T) {
	assert.True(t, cupConfig.Qualifies(reading(4.99)))
	assert.False(t, cupConfig.Qualifies(reading(5.0)))
	assert.False(t, cupConfig.Qualifies(reading(0.5)), "below the valid window")
}

func TestObserve_StreakIsTrailingRun(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	// A detector that is permanently in cooldown never resets the streak
	// by firing, so the streak must equal the trailing qualifying run.
	cfg := Config{ThresholdCM: 5, RequiredHits: 1, Cooldown: 24 * time.Hour}

	for round := 0; round < 50; round++ {
		state := State{LastTrigger: epoch}
		run := 0
		for i := 0; i < 40; i++ {
			var sample sensor.DistanceSample
			switch rng.IntN(4) {
			case 0:
				sample = timeout
			case 1:
				sample = reading(rng.Float64() * 500)
			default:
				sample = reading(1.5 + rng.Float64()*3)
			}
			if cfg.Qualifies(sample) {
				run++
			} else {
				run = 0
			}
			var fired bool
			fired, state = Observe(cfg, state, sample, at(float64(i)))
			require.False(t, fired)
			require.Equal(t, run, state.Streak)
		}
	}
}

func TestObserve_NeverTwiceWithinCooldown(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for round := 0; round < 50; round++ {
		d := New(Config{ThresholdCM: 5, RequiredHits: 1 + rng.IntN(3), Cooldown: 2 * time.Second})
		now := epoch
		var last time.Time
		for i := 0; i < 500; i++ {
			now = now.Add(time.Duration(rng.IntN(200)) * time.Millisecond)
			sample := reading(2)
			if rng.IntN(5) == 0 {
				sample = timeout
			}
			if ev, fired := d.Observe(sample, now); fired {
				if !last.IsZero() {
					require.Greater(t, ev.At.Sub(last), 2*time.Second)
				}
				last = ev.At
			}
		}
		assert.False(t, last.IsZero(), "some events should fire")
	}
}

func TestInCooldown(t *testing.T) {
	assert.False(t, cupConfig.InCooldown(State{}, epoch), "never triggered")
	state := State{LastTrigger: epoch}
	assert.True(t, cupConfig.InCooldown(state, epoch.Add(5*time.Second)), "cooldown must be exceeded")
	assert.False(t, cupConfig.InCooldown(state, epoch.Add(5*time.Second+time.Millisecond)))
}
