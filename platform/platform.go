// Package platform abstracts the hardware of the cup: the rangefinder and
// the LED strip. RPiPlatform drives the real thing over GPIO and SPI,
// TUIPlatform simulates both in the terminal.
package platform

import (
	"io"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/effects"
	"lautenbacher.net/puttcup/sensor"
)

type Platform interface {
	io.Closer
	// Start initializes the platform (opens GPIO/SPI, or starts the TUI).
	Start() error
	// Sampler returns the rangefinder configured for det.
	Sampler(det c.DetectionConfig) sensor.Sampler
	// Strip is the LED strip of the platform.
	Strip() effects.Strip
}

func validRange(det c.DetectionConfig) sensor.ValidRange {
	return sensor.ValidRange{Min: det.MinValidCM, Max: det.MaxValidCM}
}
