package effects

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	c "lautenbacher.net/puttcup/config"
)

// NightDimmer lowers the ambient brightness between sunset and sunrise.
// Sunrise and sunset are computed once per calendar day.
type NightDimmer struct {
	latitude   float64
	longitude  float64
	brightness float64
	day        time.Time
	rise       time.Time
	set        time.Time
}

func NewNightDimmer(cfg c.NightDimConfig) *NightDimmer {
	return &NightDimmer{
		latitude:   cfg.Latitude,
		longitude:  cfg.Longitude,
		brightness: cfg.Brightness,
	}
}

// IsNight reports whether now lies before sunrise or after sunset. During
// polar day or night no times are available and IsNight is false.
func (n *NightDimmer) IsNight(now time.Time) bool {
	utc := now.UTC()
	day := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(n.day) {
		n.rise, n.set = sunrise.SunriseSunset(n.latitude, n.longitude, day.Year(), day.Month(), day.Day())
		n.day = day
	}
	if n.rise.IsZero() || n.set.IsZero() {
		return false
	}
	return now.Before(n.rise) || now.After(n.set)
}

// Brightness returns the night brightness if now is at night and day
// otherwise.
func (n *NightDimmer) Brightness(now time.Time, day float64) float64 {
	if n.IsNight(now) {
		return min(day, n.brightness)
	}
	return day
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
