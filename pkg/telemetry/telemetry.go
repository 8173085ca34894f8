// Package telemetry publishes readings and controller status to an MQTT
// broker.
package telemetry

import (
	"encoding/json"

	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

// Topic suffixes appended to the configured prefix.
const (
	TopicReading = "reading"
	TopicStatus  = "status"
)

// Publisher publishes controller telemetry.
type Publisher interface {
	// PublishReading sends one sensor reading. Failures must not stop the
	// caller.
	PublishReading(r sample.Reading) error

	// PublishStatus sends a full status snapshot.
	PublishStatus(st state.Status) error

	// Close disconnects from the broker.
	Close() error
}

// ReadingPayload is the JSON document published for each reading.
type ReadingPayload struct {
	Reading ReadingInner `json:"reading"`
}

// ReadingInner carries the measured values.
type ReadingInner struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// StatusPayload is the JSON document published for a status snapshot.
type StatusPayload struct {
	Status StatusInner `json:"status"`
}

// StatusInner carries settings and status flags.
type StatusInner struct {
	Reading              ReadingInner `json:"reading"`
	TemperatureSetpoint  float64      `json:"temperature_setpoint"`
	HumiditySetpoint     float64      `json:"humidity_setpoint"`
	AutoMode             bool         `json:"auto_mode"`
	HeatingActive        bool         `json:"heating_active"`
	HumidificationActive bool         `json:"humidification_active"`
	Connected            bool         `json:"connected"`
	HumidifierAlarm      bool         `json:"humidifier_alarm"`
	HumidifierRunning    bool         `json:"humidifier_running"`
	HumidifierService    bool         `json:"humidifier_service"`
}

func readingInner(r sample.Reading) ReadingInner {
	in := ReadingInner{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	}
	if r.Timestamp != 0 {
		in.Timestamp = r.Timestamp.String()
	}
	return in
}

// FormatReading creates the JSON payload for a reading.
func FormatReading(r sample.Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{Reading: readingInner(r)})
}

// FormatStatus creates the JSON payload for a status snapshot.
func FormatStatus(st state.Status) ([]byte, error) {
	return json.Marshal(StatusPayload{Status: StatusInner{
		Reading:              readingInner(st.Reading),
		TemperatureSetpoint:  st.Settings.TemperatureSetpoint,
		HumiditySetpoint:     st.Settings.HumiditySetpoint,
		AutoMode:             st.Settings.AutoMode,
		HeatingActive:        st.HeatingActive,
		HumidificationActive: st.HumidificationActive,
		Connected:            st.Connected,
		HumidifierAlarm:      st.HumidifierAlarm,
		HumidifierRunning:    st.HumidifierRunning,
		HumidifierService:    st.HumidifierService,
	}})
}

// Nop discards everything.
type Nop struct{}

func (Nop) PublishReading(sample.Reading) error { return nil }
func (Nop) PublishStatus(state.Status) error    { return nil }
func (Nop) Close() error                        { return nil }
