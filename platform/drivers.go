package platform

import (
	"fmt"
	"math"
	"strings"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/effects"
)

// ledDriver turns LED values into the byte stream of one chip type.
type ledDriver interface {
	encode(leds []effects.Led) []byte
}

func newLedDriver(ledType string, display c.DisplayConfig) (ledDriver, error) {
	switch strings.ToUpper(ledType) {
	case "APA102":
		return newApa102Driver(display), nil
	case "WS2801":
		return newWs2801Driver(display), nil
	default:
		return nil, fmt.Errorf("unknown LED type: %s", ledType)
	}
}

func corrected(v byte, factor float64) byte {
	return byte(math.Min(math.Round(float64(v)*factor), 255))
}

type ws2801Driver struct {
	correction []float64
	buffer     []byte
}

func newWs2801Driver(display c.DisplayConfig) *ws2801Driver {
	return &ws2801Driver{
		correction: display.ColorCorrection,
		buffer:     make([]byte, 3*display.LedsTotal),
	}
}

func (d *ws2801Driver) encode(leds []effects.Led) []byte {
	if cap(d.buffer) < 3*len(leds) {
		d.buffer = make([]byte, 3*len(leds))
	}
	out := d.buffer[:3*len(leds)]
	for i, led := range leds {
		out[3*i] = corrected(led.Red, d.correction[0])
		out[3*i+1] = corrected(led.Green, d.correction[1])
		out[3*i+2] = corrected(led.Blue, d.correction[2])
	}
	return out
}

type apa102Driver struct {
	correction []float64
	brightness byte
	buffer     []byte
}

func newApa102Driver(display c.DisplayConfig) *apa102Driver {
	return &apa102Driver{
		correction: display.ColorCorrection,
		brightness: display.APA102_Brightness | 0xE0,
		buffer:     make([]byte, apa102Size(display.LedsTotal)),
	}
}

// 4 byte start frame, 4 bytes per LED, then at least n/2 bits of ones
func apa102Size(n int) int {
	return 4 + 4*n + n/16 + 1
}

func (d *apa102Driver) encode(leds []effects.Led) []byte {
	size := apa102Size(len(leds))
	if cap(d.buffer) < size {
		d.buffer = make([]byte, size)
	}
	out := d.buffer[:size]
	copy(out[0:4], []byte{0x00, 0x00, 0x00, 0x00})

	offset := 4
	for _, led := range leds {
		// protocol: brightness byte, blue, green, red
		out[offset] = d.brightness
		out[offset+1] = corrected(led.Blue, d.correction[2])
		out[offset+2] = corrected(led.Green, d.correction[1])
		out[offset+3] = corrected(led.Red, d.correction[0])
		offset += 4
	}
	for i := offset; i < size; i++ {
		out[i] = 0xFF
	}
	return out
}
