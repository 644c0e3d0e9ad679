package peripheral

import (
	"fmt"
	"log/slog"
	"strings"

	"go.bug.st/serial"

	c "lautenbacher.net/puttcup/config"
)

// PortOptions are the line settings of the serial connection.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

func OptionsFromConfig(cfg c.PeripheralConfig) PortOptions {
	return PortOptions{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
	}
}

// Normalize validates the options and fills in 115200 8N1 for unset
// values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial opens a
// port with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// OpenPort opens the serial device at path.
func OpenPort(path string, opts PortOptions) (serial.Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("can't open serial port %s: %w", path, err)
	}
	return port, nil
}

// Connect returns a link to the configured co-processor. When the
// peripheral is disabled or the port can't be opened the link is
// disconnected; the controller runs standalone in that case.
func Connect(cfg c.PeripheralConfig) *Link {
	if !cfg.Enabled {
		return Disconnected()
	}
	port, err := OpenPort(cfg.Port, OptionsFromConfig(cfg))
	if err != nil {
		slog.Warn("Running without peripheral", "error", err)
		return Disconnected()
	}
	slog.Info("Connected to peripheral", "port", cfg.Port)
	return NewLink(cfg.Port, port)
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
