package web

import (
	"encoding/json"
	"math"

	"github.com/itohio/microclimate/pkg/state"
)

// StatusJSON is the /data document polled by the page.
type StatusJSON struct {
	Temp                 float64 `json:"temp"`
	Hum                  float64 `json:"hum"`
	HeatingActive        int     `json:"heating_active"`
	HumidificationActive int     `json:"humidification_active"`
	HeatSetpoint         float64 `json:"heat_setpoint"`
	HumSetpoint          float64 `json:"hum_setpoint"`
	AutoMode             int     `json:"auto_mode"`
	Wifi                 int     `json:"wifi"`
	HumidifierAlarm      int     `json:"humidifier_alarm"`
	HumidifierRunning    int     `json:"humidifier_running"`
	HumidifierService    int     `json:"humidifier_service"`
}

// NewStatusJSON converts a status snapshot to its wire form.
func NewStatusJSON(st state.Status) StatusJSON {
	return StatusJSON{
		Temp:                 tenth(st.Reading.Temperature),
		Hum:                  tenth(st.Reading.Humidity),
		HeatingActive:        bit(st.HeatingActive),
		HumidificationActive: bit(st.HumidificationActive),
		HeatSetpoint:         tenth(st.Settings.TemperatureSetpoint),
		HumSetpoint:          tenth(st.Settings.HumiditySetpoint),
		AutoMode:             bit(st.Settings.AutoMode),
		Wifi:                 bit(st.Connected),
		HumidifierAlarm:      bit(st.HumidifierAlarm),
		HumidifierRunning:    bit(st.HumidifierRunning),
		HumidifierService:    bit(st.HumidifierService),
	}
}

func renderJSON(st state.Status) ([]byte, error) {
	return json.Marshal(NewStatusJSON(st))
}

func tenth(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
