package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

type Config struct {
	RealHW      bool              `yaml:"-"`
	Configfile  string            `yaml:"-"`
	Detection   DetectionConfig   `yaml:"Detection"`
	Celebration CelebrationConfig `yaml:"Celebration"`
	Ambient     AmbientConfig     `yaml:"Ambient"`
	Audio       AudioConfig       `yaml:"Audio"`
	Peripheral  PeripheralConfig  `yaml:"Peripheral"`
	Announce    AnnounceConfig    `yaml:"Announce"`
	Hardware    HardwareConfig    `yaml:"Hardware"`
	Logging     LoggingConfig     `yaml:"Logging"`
}

// DetectionConfig holds the sensing cadence and the hit confirmation
// parameters.
type DetectionConfig struct {
	ThresholdCM  float64       `yaml:"ThresholdCM" json:"ThresholdCM"`
	RequiredHits int           `yaml:"RequiredHits" json:"RequiredHits"`
	Cooldown     time.Duration `yaml:"Cooldown" json:"Cooldown"`
	PollInterval time.Duration `yaml:"PollInterval" json:"PollInterval"`
	EchoTimeout  time.Duration `yaml:"EchoTimeout" json:"EchoTimeout"`
	Settle       time.Duration `yaml:"Settle" json:"Settle"`
	MinValidCM   float64       `yaml:"MinValidCM" json:"MinValidCM"`
	MaxValidCM   float64       `yaml:"MaxValidCM" json:"MaxValidCM"`
}

type PhaseCfg struct {
	Name  string  `yaml:"Name" json:"Name"`
	Share float64 `yaml:"Share" json:"Share"`
}

type CelebrationConfig struct {
	Duration      time.Duration `yaml:"Duration" json:"Duration"`
	Phases        []PhaseCfg    `yaml:"Phases" json:"Phases"`
	SweepRGB      []float64     `yaml:"SweepRGB" json:"SweepRGB"`
	SweepWidth    int           `yaml:"SweepWidth" json:"SweepWidth"`
	FlashRGB      []float64     `yaml:"FlashRGB" json:"FlashRGB"`
	StrobeDensity float64       `yaml:"StrobeDensity" json:"StrobeDensity"`
	FlashInterval time.Duration `yaml:"FlashInterval" json:"FlashInterval"`
}

type NightDimConfig struct {
	Enabled    bool    `yaml:"Enabled" json:"Enabled"`
	Latitude   float64 `yaml:"Latitude" json:"Latitude"`
	Longitude  float64 `yaml:"Longitude" json:"Longitude"`
	Brightness float64 `yaml:"Brightness" json:"Brightness"`
}

type AmbientConfig struct {
	Brightness float64        `yaml:"Brightness" json:"Brightness"`
	MinGreen   int            `yaml:"MinGreen" json:"MinGreen"`
	MaxGreen   int            `yaml:"MaxGreen" json:"MaxGreen"`
	NightDim   NightDimConfig `yaml:"NightDim" json:"NightDim"`
}

type AudioConfig struct {
	Enabled bool     `yaml:"Enabled"`
	Dir     string   `yaml:"Dir"`
	Backend string   `yaml:"Backend"`
	Command []string `yaml:"Command"`
	// output device name substring for the portaudio backend, empty for
	// the default device
	Device string `yaml:"Device"`
}

type PeripheralConfig struct {
	Enabled  bool   `yaml:"Enabled"`
	Port     string `yaml:"Port"`
	BaudRate int    `yaml:"BaudRate"`
	DataBits int    `yaml:"DataBits"`
	StopBits int    `yaml:"StopBits"`
	Parity   string `yaml:"Parity"`
}

type AnnounceConfig struct {
	Enabled  bool   `yaml:"Enabled"`
	Broker   string `yaml:"Broker"`
	ClientID string `yaml:"ClientID"`
	Topic    string `yaml:"Topic"`
	Username string `yaml:"Username"`
	Password string `yaml:"Password"`
}

type SegmentCfg struct {
	FirstLed int  `yaml:"FirstLed"`
	LastLed  int  `yaml:"LastLed"`
	Reverse  bool `yaml:"Reverse"`
}

type DisplayConfig struct {
	LedsTotal         int          `yaml:"LedsTotal"`
	ColorCorrection   []float64    `yaml:"ColorCorrection"`
	APA102_Brightness byte         `yaml:"APA102_Brightness"`
	LedSegments       []SegmentCfg `yaml:"LedSegments"`
}

type HardwareConfig struct {
	TriggerPin   int           `yaml:"TriggerPin"`
	EchoPin      int           `yaml:"EchoPin"`
	LEDType      string        `yaml:"LEDType"`
	SPIFrequency int           `yaml:"SPIFrequency"`
	Display      DisplayConfig `yaml:"Display"`
}

type LogTarget struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type LoggingConfig struct {
	TUI LogTarget `yaml:"TUI"`
	HW  LogTarget `yaml:"HW"`
}

// Default returns the values the cup was first tuned with.
func Default() Config {
	return Config{
		Detection: DetectionConfig{
			ThresholdCM:  5,
			RequiredHits: 2,
			Cooldown:     5 * time.Second,
			PollInterval: 50 * time.Millisecond,
			EchoTimeout:  50 * time.Millisecond,
			Settle:       50 * time.Millisecond,
			MinValidCM:   1,
			MaxValidCM:   400,
		},
		Celebration: CelebrationConfig{
			Duration:      10 * time.Second,
			Phases:        []PhaseCfg{{Name: "sweep", Share: 0.3}, {Name: "strobe", Share: 0.7}},
			SweepRGB:      []float64{255, 255, 0},
			SweepWidth:    4,
			FlashRGB:      []float64{255, 255, 255},
			StrobeDensity: 0.3,
			FlashInterval: 50 * time.Millisecond,
		},
		Ambient: AmbientConfig{
			Brightness: 0.6,
			MinGreen:   60,
			MaxGreen:   180,
			NightDim:   NightDimConfig{Brightness: 0.2},
		},
		Audio: AudioConfig{
			Enabled: true,
			Dir:     "golf_sounds",
			Backend: "command",
			Command: []string{"aplay", "-q"},
		},
		Peripheral: PeripheralConfig{
			Enabled:  true,
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Announce: AnnounceConfig{
			ClientID: "puttcup",
			Topic:    "puttcup/holes",
		},
		Hardware: HardwareConfig{
			TriggerPin:   23,
			EchoPin:      19,
			LEDType:      "WS2801",
			SPIFrequency: 1000000,
			Display: DisplayConfig{
				LedsTotal:         30,
				ColorCorrection:   []float64{1, 1, 1},
				APA102_Brightness: 31,
			},
		},
		Logging: LoggingConfig{
			TUI: LogTarget{Level: "DEBUG", Format: "text"},
			HW:  LogTarget{Level: "INFO", Format: "text", File: "puttcup.log"},
		},
	}
}

// ReadConfig decodes the YAML file on top of Default() and validates the
// result.
func ReadConfig(cfile string) (Config, error) {
	conf := Default()

	f, err := os.Open(cfile)
	if err != nil {
		return Config{}, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.Configfile = cfile

	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// Validate checks the whole configuration. All problems found are joined
// into the returned error.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.Detection.validate()...)
	errs = append(errs, c.Celebration.validate()...)
	errs = append(errs, c.Ambient.validate()...)

	if c.Audio.Enabled {
		switch strings.ToLower(c.Audio.Backend) {
		case "command":
			if len(c.Audio.Command) == 0 {
				errs = append(errs, errors.New("Audio.Command must not be empty for the command backend"))
			}
		case "portaudio":
		default:
			errs = append(errs, fmt.Errorf("unknown Audio.Backend %q: expected command or portaudio", c.Audio.Backend))
		}
	}
	if c.Peripheral.Enabled && c.Peripheral.Port == "" {
		errs = append(errs, errors.New("Peripheral.Port must be set when the peripheral is enabled"))
	}
	if c.Announce.Enabled && (c.Announce.Broker == "" || c.Announce.Topic == "") {
		errs = append(errs, errors.New("Announce.Broker and Announce.Topic must be set when announcing is enabled"))
	}
	errs = append(errs, c.Hardware.validate()...)

	return errors.Join(errs...)
}

func (d DetectionConfig) validate() []error {
	var errs []error
	if d.ThresholdCM <= 0 {
		errs = append(errs, fmt.Errorf("Detection.ThresholdCM must be positive, got %v", d.ThresholdCM))
	}
	if d.RequiredHits < 1 {
		errs = append(errs, fmt.Errorf("Detection.RequiredHits must be at least 1, got %d", d.RequiredHits))
	}
	if d.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("Detection.Cooldown must not be negative, got %v", d.Cooldown))
	}
	if d.PollInterval <= 0 || d.EchoTimeout <= 0 {
		errs = append(errs, errors.New("Detection.PollInterval and Detection.EchoTimeout must be positive"))
	}
	if d.Settle < 0 {
		errs = append(errs, fmt.Errorf("Detection.Settle must not be negative, got %v", d.Settle))
	}
	if d.MinValidCM < 0 || d.MinValidCM >= d.MaxValidCM {
		errs = append(errs, fmt.Errorf("Detection valid range (%v, %v) is empty", d.MinValidCM, d.MaxValidCM))
	}
	return errs
}

func (c CelebrationConfig) validate() []error {
	var errs []error
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("Celebration.Duration must be positive, got %v", c.Duration))
	}
	if len(c.Phases) == 0 {
		errs = append(errs, errors.New("Celebration.Phases must name at least one phase"))
	}
	for _, p := range c.Phases {
		switch p.Name {
		case "sweep", "strobe":
		default:
			errs = append(errs, fmt.Errorf("unknown celebration phase %q", p.Name))
		}
		if p.Share <= 0 {
			errs = append(errs, fmt.Errorf("celebration phase %q needs a positive Share", p.Name))
		}
	}
	errs = append(errs, validateRGB("Celebration.SweepRGB", c.SweepRGB)...)
	errs = append(errs, validateRGB("Celebration.FlashRGB", c.FlashRGB)...)
	if c.StrobeDensity <= 0 || c.StrobeDensity > 1 {
		errs = append(errs, fmt.Errorf("Celebration.StrobeDensity must be in (0, 1], got %v", c.StrobeDensity))
	}
	if c.FlashInterval <= 0 {
		errs = append(errs, fmt.Errorf("Celebration.FlashInterval must be positive, got %v", c.FlashInterval))
	}
	if c.SweepWidth < 1 {
		errs = append(errs, fmt.Errorf("Celebration.SweepWidth must be at least 1, got %d", c.SweepWidth))
	}
	return errs
}

func (a AmbientConfig) validate() []error {
	var errs []error
	if a.Brightness < 0 || a.Brightness > 1 {
		errs = append(errs, fmt.Errorf("Ambient.Brightness must be between 0 and 1, got %v", a.Brightness))
	}
	if a.NightDim.Brightness < 0 || a.NightDim.Brightness > 1 {
		errs = append(errs, fmt.Errorf("Ambient.NightDim.Brightness must be between 0 and 1, got %v", a.NightDim.Brightness))
	}
	if a.MinGreen < 0 || a.MaxGreen > 256 || a.MinGreen >= a.MaxGreen {
		errs = append(errs, fmt.Errorf("Ambient green range [%d, %d) is invalid", a.MinGreen, a.MaxGreen))
	}
	return errs
}

func (h HardwareConfig) validate() []error {
	var errs []error
	if h.Display.LedsTotal < 1 {
		errs = append(errs, fmt.Errorf("Hardware.Display.LedsTotal must be at least 1, got %d", h.Display.LedsTotal))
	}
	switch strings.ToUpper(h.LEDType) {
	case "WS2801", "APA102":
	default:
		errs = append(errs, fmt.Errorf("unknown LED type: %s", h.LEDType))
	}
	if len(h.Display.ColorCorrection) != 3 {
		errs = append(errs, errors.New("Hardware.Display.ColorCorrection must have exactly 3 values"))
	}
	if h.Display.APA102_Brightness > 31 {
		errs = append(errs, fmt.Errorf("Hardware.Display.APA102_Brightness must be between 0 and 31, got %d", h.Display.APA102_Brightness))
	}
	if h.TriggerPin == h.EchoPin {
		errs = append(errs, fmt.Errorf("trigger and echo must use different pins, both are %d", h.TriggerPin))
	}
	for i, seg := range h.Display.LedSegments {
		if seg.FirstLed < 0 || seg.LastLed >= h.Display.LedsTotal || seg.FirstLed > seg.LastLed {
			errs = append(errs, fmt.Errorf("LED segment %d [%d, %d] must be between 0 and %d", i, seg.FirstLed, seg.LastLed, h.Display.LedsTotal-1))
		}
	}
	return errs
}

func validateRGB(name string, rgb []float64) []error {
	if len(rgb) != 3 {
		return []error{fmt.Errorf("%s must have exactly 3 values, got %d", name, len(rgb))}
	}
	var errs []error
	for _, v := range rgb {
		if v < 0 || v > 255 {
			errs = append(errs, fmt.Errorf("%s value %v must be between 0 and 255", name, v))
		}
	}
	return errs
}
