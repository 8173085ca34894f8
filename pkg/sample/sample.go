package sample

import (
	"fmt"
	"time"
)

// Physical ranges of the measured quantities.
const (
	TemperatureMin = -10.0 // °C
	TemperatureMax = 60.0  // °C
	HumidityMin    = 0.0   // %RH
	HumidityMax    = 100.0 // %RH
)

// Scale is the factor between raw register values and engineering units.
const Scale = 10.0

// Stamp is a wall-clock minute packed as the decimal digits YYYYMMDDHHMM.
// Zero means "no timestamp".
type Stamp uint64

// Reading represents one temperature/humidity measurement.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	Timestamp   Stamp
}

// PackTimestamp packs t into a Stamp using t's location.
func PackTimestamp(t time.Time) Stamp {
	return Stamp(uint64(t.Year())*100000000 +
		uint64(t.Month())*1000000 +
		uint64(t.Day())*10000 +
		uint64(t.Hour())*100 +
		uint64(t.Minute()))
}

// Year returns the year component.
func (s Stamp) Year() int { return int(s / 100000000) }

// Month returns the month component.
func (s Stamp) Month() int { return int(s % 100000000 / 1000000) }

// Day returns the day-of-month component.
func (s Stamp) Day() int { return int(s % 1000000 / 10000) }

// Hour returns the hour component.
func (s Stamp) Hour() int { return int(s % 10000 / 100) }

// Minute returns the minute component.
func (s Stamp) Minute() int { return int(s % 100) }

// Time converts the stamp back to a time in loc.
func (s Stamp) Time(loc *time.Location) time.Time {
	return time.Date(s.Year(), time.Month(s.Month()), s.Day(), s.Hour(), s.Minute(), 0, 0, loc)
}

// String formats the stamp as "YYYY-MM-DD HH:MM".
func (s Stamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", s.Year(), s.Month(), s.Day(), s.Hour(), s.Minute())
}

// Temperature converts a raw register value to °C. The sensor reports
// negative temperatures in two's complement.
func Temperature(raw uint16) float64 {
	return float64(int16(raw)) / Scale
}

// Humidity converts a raw register value to %RH.
func Humidity(raw uint16) float64 {
	return float64(raw) / Scale
}

// RawTemperature converts °C to the register encoding.
func RawTemperature(c float64) uint16 {
	return uint16(int16(round(c * Scale)))
}

// RawHumidity converts %RH to the register encoding.
func RawHumidity(rh float64) uint16 {
	if rh < 0 {
		return 0
	}
	return uint16(round(rh * Scale))
}

// InRange reports whether the reading lies within the physical ranges.
func (r Reading) InRange() bool {
	return r.Temperature >= TemperatureMin && r.Temperature <= TemperatureMax &&
		r.Humidity >= HumidityMin && r.Humidity <= HumidityMax
}

// ClampTemperature limits v to the temperature range.
func ClampTemperature(v float64) float64 {
	return clamp(v, TemperatureMin, TemperatureMax)
}

// ClampHumidity limits v to the humidity range.
func ClampHumidity(v float64) float64 {
	return clamp(v, HumidityMin, HumidityMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}
