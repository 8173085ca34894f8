package telemetry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

func TestFormatReading(t *testing.T) {
	payload, err := FormatReading(sample.Reading{Temperature: 21.5, Humidity: 48.2, Timestamp: 202602271430})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reading":{"temperature":21.5,"humidity":48.2,"timestamp":"2026-02-27 14:30"}}`, string(payload))
}

func TestFormatReading_NoTimestamp(t *testing.T) {
	payload, err := FormatReading(sample.Reading{Temperature: -1, Humidity: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reading":{"temperature":-1,"humidity":0}}`, string(payload))
}

func TestFormatStatus(t *testing.T) {
	st := state.Status{
		Reading:         sample.Reading{Temperature: 20, Humidity: 40},
		Settings:        state.DefaultSettings(),
		HeatingActive:   true,
		HumidifierAlarm: true,
	}
	payload, err := FormatStatus(st)
	require.NoError(t, err)

	var got StatusPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, 22.0, got.Status.TemperatureSetpoint)
	assert.Equal(t, 50.0, got.Status.HumiditySetpoint)
	assert.True(t, got.Status.AutoMode)
	assert.True(t, got.Status.HeatingActive)
	assert.True(t, got.Status.HumidifierAlarm)
	assert.False(t, got.Status.Connected)
	assert.Equal(t, 20.0, got.Status.Reading.Temperature)
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	require.NoError(t, f.PublishReading(sample.Reading{Temperature: 1}))
	require.NoError(t, f.PublishStatus(state.Status{Connected: true}))
	assert.Len(t, f.Readings(), 1)
	assert.Len(t, f.Statuses(), 1)

	f.PublishError = errors.New("broker down")
	assert.Error(t, f.PublishReading(sample.Reading{}))
	assert.Len(t, f.Readings(), 1)

	assert.False(t, f.Closed())
	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishReading(sample.Reading{}))
	assert.NoError(t, p.PublishStatus(state.Status{}))
	assert.NoError(t, p.Close())
}
