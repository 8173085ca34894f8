package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPackTimestamp(t *testing.T) {
	tm := time.Date(2026, time.February, 27, 14, 30, 59, 0, time.UTC)

	s := PackTimestamp(tm)
	assert.Equal(t, Stamp(202602271430), s)
	assert.Equal(t, 2026, s.Year())
	assert.Equal(t, 2, s.Month())
	assert.Equal(t, 27, s.Day())
	assert.Equal(t, 14, s.Hour())
	assert.Equal(t, 30, s.Minute())
	assert.Equal(t, "2026-02-27 14:30", s.String())
	assert.Equal(t, tm.Truncate(time.Minute), s.Time(time.UTC))
}

func TestPackTimestamp_ExceedsUint32(t *testing.T) {
	s := PackTimestamp(time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Greater(t, uint64(s), uint64(^uint32(0)))
	assert.Equal(t, "2026-12-31 23:59", s.String())
}

func TestConversion(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		temp float64
		hum  float64
	}{
		{"zero", 0, 0, 0},
		{"room", 235, 23.5, 23.5},
		{"max humidity", 1000, 100, 100},
		{"negative temperature", 0xFF9C, -10, 6543.6},
		{"minus half", 0xFFFB, -0.5, 6553.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.temp, Temperature(tt.raw), 1e-9)
			assert.InDelta(t, tt.hum, Humidity(tt.raw), 1e-9)
		})
	}
}

func TestRawRoundTrip(t *testing.T) {
	for _, c := range []float64{-10, -0.5, 0, 21.7, 60} {
		assert.InDelta(t, c, Temperature(RawTemperature(c)), 1e-9)
	}
	for _, rh := range []float64{0, 45.3, 100} {
		assert.InDelta(t, rh, Humidity(RawHumidity(rh)), 1e-9)
	}
	assert.Equal(t, uint16(0), RawHumidity(-3))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 60.0, ClampTemperature(999))
	assert.Equal(t, -10.0, ClampTemperature(-40))
	assert.Equal(t, 22.5, ClampTemperature(22.5))
	assert.Equal(t, 0.0, ClampHumidity(-50))
	assert.Equal(t, 100.0, ClampHumidity(120))
	assert.Equal(t, 55.0, ClampHumidity(55))
}

func TestReading_InRange(t *testing.T) {
	assert.True(t, Reading{Temperature: 22, Humidity: 50}.InRange())
	assert.True(t, Reading{Temperature: -10, Humidity: 100}.InRange())
	assert.False(t, Reading{Temperature: 60.1, Humidity: 50}.InRange())
	assert.False(t, Reading{Temperature: 22, Humidity: 6553.2}.InRange())
}
