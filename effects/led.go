package effects

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Led struct {
	Red   byte
	Green byte
	Blue  byte
}

// True if all components are zero, false otherwise
func (s Led) IsEmpty() bool {
	return s.Red == 0 && s.Green == 0 && s.Blue == 0
}

// Return a Led with per component the max value of the caller and the
// in parameter
func (s Led) Max(in Led) Led {
	if s.Red > in.Red {
		in.Red = s.Red
	}
	if s.Green > in.Green {
		in.Green = s.Green
	}
	if s.Blue > in.Blue {
		in.Blue = s.Blue
	}
	return in
}

// Scale attenuates every channel by f, rounding to the nearest value. f is
// clamped to [0, 1] so the result never exceeds the input.
func (s Led) Scale(f float64) Led {
	f = clamp(f, 0, 1)
	return Led{
		Red:   scaleChannel(s.Red, f),
		Green: scaleChannel(s.Green, f),
		Blue:  scaleChannel(s.Blue, f),
	}
}

func scaleChannel(c byte, f float64) byte {
	return byte(math.Round(float64(c) * f))
}

// LedFromRGB builds a Led from a validated [r, g, b] config triple.
func LedFromRGB(rgb []float64) Led {
	if len(rgb) != 3 {
		return Led{}
	}
	return Led{
		Red:   byte(clamp(math.Round(rgb[0]), 0, 255)),
		Green: byte(clamp(math.Round(rgb[1]), 0, 255)),
		Blue:  byte(clamp(math.Round(rgb[2]), 0, 255)),
	}
}

// Fill sets every LED of leds to value.
func Fill(leds []Led, value Led) {
	for i := range leds {
		leds[i] = value
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
