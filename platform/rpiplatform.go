package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/effects"
	"lautenbacher.net/puttcup/sensor"
)

// RaspberryPiPlatform drives an HC-SR04 on two GPIO pins and an SPI LED
// chain on SPI0.
type RaspberryPiPlatform struct {
	hw        c.HardwareConfig
	trigger   rpio.Pin
	echo      echoPin
	layout    *layout
	ledDriver ledDriver
	spiMutex  sync.Mutex
	started   bool
}

// echoPin adapts an input pin to sensor.EchoLine. rpio.Pin already has
// the High/Low methods of sensor.TriggerLine.
type echoPin struct {
	rpio.Pin
}

func (p echoPin) IsHigh() bool {
	return p.Read() == rpio.High
}

func NewRaspberryPiPlatform(hw c.HardwareConfig) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		hw:      hw,
		trigger: rpio.Pin(hw.TriggerPin),
		echo:    echoPin{rpio.Pin(hw.EchoPin)},
	}
}

func (s *RaspberryPiPlatform) Start() error {
	var err error
	if s.layout, err = newLayout(s.hw.Display); err != nil {
		return err
	}
	if s.ledDriver, err = newLedDriver(s.hw.LEDType, s.hw.Display); err != nil {
		return err
	}

	slog.Info("Initialise GPIO and Spi...", "trigger", s.hw.TriggerPin, "echo", s.hw.EchoPin, "leds", s.hw.Display.LedsTotal)
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return fmt.Errorf("failed to begin spi: %w", err)
	}
	rpio.SpiSpeed(s.hw.SPIFrequency)

	s.trigger.Output()
	s.trigger.Low()
	s.echo.Input()
	s.echo.PullDown()
	s.started = true
	return nil
}

func (s *RaspberryPiPlatform) Sampler(det c.DetectionConfig) sensor.Sampler {
	return sensor.NewRangeSensor(s.trigger, s.echo, sensor.SystemClock{}, det.Settle, validRange(det))
}

func (s *RaspberryPiPlatform) Strip() effects.Strip {
	return s
}

func (s *RaspberryPiPlatform) Len() int {
	return s.hw.Display.LedsTotal
}

// Show writes one frame to the chain in a single SPI transfer.
func (s *RaspberryPiPlatform) Show(leds []effects.Led) error {
	s.spiMutex.Lock()
	defer s.spiMutex.Unlock()
	if !s.started {
		return errors.New("spi is not open")
	}
	rpio.SpiTransmit(s.ledDriver.encode(s.layout.apply(leds))...)
	return nil
}

// Close releases SPI and GPIO. The trigger is left low.
func (s *RaspberryPiPlatform) Close() error {
	s.spiMutex.Lock()
	defer s.spiMutex.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.trigger.Low()
	rpio.SpiEnd(rpio.Spi0)
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("error closing rpio: %w", err)
	}
	return nil
}
