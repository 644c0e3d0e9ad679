package platform

import (
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/controller"
	"lautenbacher.net/puttcup/effects"
	"lautenbacher.net/puttcup/sensor"
)

func display(total int, segs ...c.SegmentCfg) c.DisplayConfig {
	return c.DisplayConfig{
		LedsTotal:         total,
		ColorCorrection:   []float64{1, 1, 1},
		APA102_Brightness: 31,
		LedSegments:       segs,
	}
}

func numbered(n int) []effects.Led {
	leds := make([]effects.Led, n)
	for i := range leds {
		leds[i] = effects.Led{Red: byte(i + 1)}
	}
	return leds
}

func reds(leds []effects.Led) []byte {
	out := make([]byte, len(leds))
	for i, led := range leds {
		out[i] = led.Red
	}
	return out
}

func TestLayout_Default(t *testing.T) {
	l, err := newLayout(display(5))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, reds(l.apply(numbered(5))))
}

func TestLayout_SegmentsAndGaps(t *testing.T) {
	l, err := newLayout(display(10,
		c.SegmentCfg{FirstLed: 6, LastLed: 9, Reverse: true},
		c.SegmentCfg{FirstLed: 3, LastLed: 1},
	))
	require.NoError(t, err)

	frame := numbered(10)
	out := l.apply(frame)
	assert.Equal(t, []byte{0, 2, 3, 4, 0, 0, 10, 9, 8, 7}, reds(out))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, reds(frame), "the frame is not modified")
}

func TestLayout_Overlap(t *testing.T) {
	_, err := newLayout(display(10, c.SegmentCfg{FirstLed: 0, LastLed: 5}, c.SegmentCfg{FirstLed: 5, LastLed: 9}))
	assert.ErrorContains(t, err, "overlapping display segments at index 5")

	_, err = newLayout(display(10, c.SegmentCfg{FirstLed: 0, LastLed: 10}))
	assert.ErrorContains(t, err, "exceeds")
}

func TestWS2801Driver(t *testing.T) {
	d := newWs2801Driver(display(3))
	out := d.encode([]effects.Led{{Red: 255}, {Green: 255}, {Blue: 255}})
	assert.Equal(t, []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}, out)
}

func TestWS2801Driver_ColorCorrection(t *testing.T) {
	cfg := display(1)
	cfg.ColorCorrection = []float64{0.5, 2, 1}
	d := newWs2801Driver(cfg)
	assert.Equal(t, []byte{50, 255, 7}, d.encode([]effects.Led{{Red: 100, Green: 200, Blue: 7}}))
}

func TestAPA102Driver(t *testing.T) {
	d := newApa102Driver(display(2))
	out := d.encode([]effects.Led{{Red: 255}, {Green: 255}})
	expected := []byte{
		0x00, 0x00, 0x00, 0x00, // start frame
		0xFF, 0, 0, 255, // LED 1: brightness, blue, green, red
		0xFF, 0, 255, 0, // LED 2
		0xFF, // end frame
	}
	assert.Equal(t, expected, out)
}

func TestNewLedDriver(t *testing.T) {
	_, err := newLedDriver("apa102", display(1))
	assert.NoError(t, err)
	_, err = newLedDriver("ws2812", display(1))
	assert.ErrorContains(t, err, "unknown LED type")
}

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *stepClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestSimulatedRanger_WithRangeSensor(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), step: time.Microsecond}
	r := NewSimulatedRanger(clock, rand.New(rand.NewPCG(1, 2)))
	s := sensor.NewRangeSensor(r, r, clock, time.Millisecond, sensor.ValidRange{Min: 1, Max: 400})

	sample := s.Sample(50 * time.Millisecond)
	require.True(t, sample.Valid())
	assert.InDelta(t, EmptyCupCM, sample.Value, 0.1)

	r.SetDistance(BallInCM)
	sample = s.Sample(50 * time.Millisecond)
	require.True(t, sample.Valid())
	assert.InDelta(t, BallInCM, sample.Value, 0.1)
}

func TestSimulatedRanger_Noise(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), step: 5 * time.Microsecond}
	r := NewSimulatedRanger(clock, rand.New(rand.NewPCG(3, 4)))
	s := sensor.NewRangeSensor(r, r, clock, 0, sensor.ValidRange{Min: 1, Max: 400})
	assert.True(t, r.ToggleNoise())
	assert.True(t, r.Noise())

	timeouts := 0
	for i := 0; i < 200; i++ {
		if s.Sample(30*time.Millisecond).Status == sensor.StatusTimeout {
			timeouts++
		}
	}
	assert.Greater(t, timeouts, 0)
	assert.Less(t, timeouts, 100)
	assert.False(t, r.ToggleNoise())
}

func TestCalculateStats(t *testing.T) {
	stats := calculateStats([]float64{10, 20, 30, 40, 50})
	assert.Equal(t, 5, stats.n)
	assert.Equal(t, 10.0, stats.min)
	assert.Equal(t, 50.0, stats.max)
	assert.Equal(t, 30.0, stats.mean)
	assert.Equal(t, 30.0, stats.median)
	// sample standard deviation
	assert.InDelta(t, math.Sqrt(250), stats.stdDev, 1e-9)

	assert.Equal(t, probeStats{}, calculateStats(nil))
	single := calculateStats([]float64{4.2})
	assert.Equal(t, 4.2, single.median)
	assert.Zero(t, single.stdDev)
}

func TestProbeViewer_History(t *testing.T) {
	pv := NewProbeViewer(5, make(chan os.Signal, 1), true)
	for i := 0; i < maxProbeHistory+10; i++ {
		pv.record(sensor.DistanceSample{Value: 3, Status: sensor.StatusOK})
	}
	pv.record(sensor.DistanceSample{Status: sensor.StatusTimeout})
	pv.record(sensor.DistanceSample{Value: 450, Status: sensor.StatusOutOfRange})

	assert.Equal(t, maxProbeHistory, pv.history.Len())
	assert.Equal(t, maxProbeHistory, pv.statuses.Len())

	text := pv.prepareDisplayText()
	assert.Contains(t, text, "1 timeouts, 1 out of range")
	assert.Contains(t, text, "[  3.0|  3.0|  3.0|  3.0]")
	assert.Contains(t, text, "450.0 cm (out-of-range)")
}

func TestRenderLeds(t *testing.T) {
	top, bottom := renderLeds([]effects.Led{{}, {Green: 255}, {Green: 15}})
	assert.True(t, strings.HasPrefix(top, " "))
	assert.True(t, strings.HasPrefix(bottom, "·"))
	assert.Contains(t, top, "[#00ff00]█[-]")
	assert.Contains(t, bottom, "[#00ff00]▁[-]")
}

func TestLedGlyphs(t *testing.T) {
	top, bottom := ledGlyphs(effects.Led{Red: 1})
	assert.Equal(t, " ", top)
	assert.Equal(t, "▁", bottom)
	top, bottom = ledGlyphs(effects.Led{Red: 127})
	assert.Equal(t, " ", top)
	assert.Equal(t, "█", bottom)
	top, bottom = ledGlyphs(effects.Led{Blue: 255})
	assert.Equal(t, "█", top)
	assert.Equal(t, "█", bottom)
}

func TestScaledColor(t *testing.T) {
	assert.Equal(t, "[#000000]", scaledColor(effects.Led{}))
	assert.Equal(t, "[#ffff00]", scaledColor(effects.Led{Red: 60, Green: 60}))
	assert.Equal(t, "[#00ff80]", scaledColor(effects.Led{Green: 100, Blue: 50}))
}

func TestFormatStatus(t *testing.T) {
	st := controller.Status{
		Mode:     controller.ModeCelebrating,
		Sample:   sensor.DistanceSample{Value: 3.2, Status: sensor.StatusOK},
		Streak:   0,
		Triggers: 4,
	}
	text := formatStatus(st)
	assert.Contains(t, text, "[yellow]celebrating[-]")
	assert.Contains(t, text, "3.2 cm (ok)")
	assert.Contains(t, text, "Holes: 4")
	assert.Contains(t, text, "Last: never")
}
