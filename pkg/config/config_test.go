package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, uint8(0x01), cfg.Sensor.Address)
	assert.Equal(t, uint8(0x03), cfg.Sensor.Function)
	assert.Equal(t, uint16(0x0001), cfg.Sensor.TemperatureRegister)
	assert.Equal(t, uint16(0x0002), cfg.Sensor.HumidityRegister)
	assert.Equal(t, 100*time.Millisecond, cfg.Sensor.Timeout)
	assert.Equal(t, "SVS_Kursov", cfg.Modem.SSID)
	assert.Equal(t, "192.168.4.1", cfg.Modem.Address)
	assert.Equal(t, 80, cfg.Modem.ListenPort)
	assert.Equal(t, Gains{Kp: 2.0, Ki: 0.05, Kd: 1.0}, cfg.Control.Temperature)
	assert.Equal(t, Gains{Kp: 1.5, Ki: 0.03, Kd: 0.8}, cfg.Control.Humidity)
	assert.Equal(t, float32(0.5), cfg.Control.Threshold)
	assert.Equal(t, 22.0, cfg.Control.TemperatureSetpoint)
	assert.Equal(t, 50.0, cfg.Control.HumiditySetpoint)
	assert.False(t, cfg.Control.ManualMode)
	assert.Equal(t, 5*time.Second, cfg.Schedule.Poll)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.History)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "climated.yaml")

	yamlContent := `
sensor:
  port: "/dev/ttyAMA1"
  timeout: 250ms

modem:
  ssid: "Greenhouse"
  passphrase: "secret123"

control:
  temperature:
    kp: 3.0
    ki: 0.1
    kd: 0.5
  temperature_setpoint: 25
  manual_mode: true

schedule:
  poll: 2s

gpio:
  heater: 4
  led_wifi: -1

mqtt:
  broker: "tcp://localhost:1883"
`
	require.NoError(t, os.WriteFile(filename, []byte(yamlContent), 0644))

	cfg, err := Load(filename)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA1", cfg.Sensor.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Sensor.Timeout)
	assert.Equal(t, "Greenhouse", cfg.Modem.SSID)
	assert.Equal(t, Gains{Kp: 3.0, Ki: 0.1, Kd: 0.5}, cfg.Control.Temperature)
	assert.Equal(t, 25.0, cfg.Control.TemperatureSetpoint)
	assert.True(t, cfg.Control.ManualMode)
	assert.Equal(t, 2*time.Second, cfg.Schedule.Poll)
	assert.Equal(t, 4, cfg.GPIO.Heater)
	assert.Equal(t, -1, cfg.GPIO.LEDWifi)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)

	// Untouched values keep their defaults
	assert.Equal(t, 9600, cfg.Sensor.BaudRate)
	assert.Equal(t, Gains{Kp: 1.5, Ki: 0.03, Kd: 0.8}, cfg.Control.Humidity)
	assert.Equal(t, time.Second, cfg.Schedule.Control)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
}

func TestLoad_ZeroValuesRestored(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "climated.yaml")

	yamlContent := `
sensor:
  port: ""
  address: 0
schedule:
  history: 0s
control:
  temperature:
    kp: 0
    ki: 0
    kd: 0
`
	require.NoError(t, os.WriteFile(filename, []byte(yamlContent), 0644))

	cfg, err := Load(filename)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Sensor.Port, cfg.Sensor.Port)
	assert.Equal(t, def.Sensor.Address, cfg.Sensor.Address)
	assert.Equal(t, def.Schedule.History, cfg.Schedule.History)
	assert.Equal(t, def.Control.Temperature, cfg.Control.Temperature)
}

func TestLoad_InvalidYAML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "climated.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("sensor: [unclosed"), 0644))

	_, err := Load(filename)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "climated.yaml")

	cfg := Default()
	cfg.Modem.SSID = "Saved"
	cfg.Control.HumiditySetpoint = 65
	cfg.Schedule.Transport = 20 * time.Millisecond

	require.NoError(t, cfg.Save(filename))

	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
