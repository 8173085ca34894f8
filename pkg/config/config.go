package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the controller configuration.
type Config struct {
	Sensor   SensorConfig   `yaml:"sensor"`
	Modem    ModemConfig    `yaml:"modem"`
	Control  ControlConfig  `yaml:"control"`
	Schedule ScheduleConfig `yaml:"schedule"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Log      LogConfig      `yaml:"log"`
	Mock     MockConfig     `yaml:"mock"`
}

// SensorConfig describes the RS-485 sensor bus.
type SensorConfig struct {
	Port                string        `yaml:"port"`
	BaudRate            int           `yaml:"baud_rate"`
	Address             uint8         `yaml:"address"`
	Function            uint8         `yaml:"function"`
	TemperatureRegister uint16        `yaml:"temperature_register"`
	HumidityRegister    uint16        `yaml:"humidity_register"`
	Timeout             time.Duration `yaml:"timeout"`
	Pause               time.Duration `yaml:"pause"` // Pause between the temperature and humidity requests
}

// ModemConfig describes the Wi-Fi modem and the access point it hosts.
type ModemConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	SSID        string        `yaml:"ssid"`
	Passphrase  string        `yaml:"passphrase"`
	Channel     int           `yaml:"channel"`
	Security    int           `yaml:"security"` // AT+CWSAP encryption code, 3 = WPA2_PSK
	Address     string        `yaml:"address"`
	ListenPort  int           `yaml:"listen_port"`
	IdleTimeout int           `yaml:"idle_timeout"` // Seconds, AT+CIPSTO
	RetryAfter  time.Duration `yaml:"retry_after"`
}

// Gains holds feedback controller coefficients.
type Gains struct {
	Kp float32 `yaml:"kp"`
	Ki float32 `yaml:"ki"`
	Kd float32 `yaml:"kd"`
}

// ControlConfig contains regulator parameters and the initial settings.
type ControlConfig struct {
	Temperature         Gains   `yaml:"temperature"`
	Humidity            Gains   `yaml:"humidity"`
	OutputMin           float32 `yaml:"output_min"`
	OutputMax           float32 `yaml:"output_max"`
	Threshold           float32 `yaml:"threshold"`
	TemperatureSetpoint float64 `yaml:"temperature_setpoint"`
	HumiditySetpoint    float64 `yaml:"humidity_setpoint"`
	ManualMode          bool    `yaml:"manual_mode"`
}

// ScheduleConfig contains task periods.
type ScheduleConfig struct {
	Poll        time.Duration `yaml:"poll"`
	Control     time.Duration `yaml:"control"`
	ReadingWait time.Duration `yaml:"reading_wait"`
	Transport   time.Duration `yaml:"transport"`
	Bookkeeping time.Duration `yaml:"bookkeeping"`
	History     time.Duration `yaml:"history"`
	ClientCheck time.Duration `yaml:"client_check"`
	Watchdog    time.Duration `yaml:"watchdog"`
}

// GPIOConfig maps logical signals to chip lines. A negative line disables the signal.
type GPIOConfig struct {
	Chip         string `yaml:"chip"`
	Heater       int    `yaml:"heater"`
	Humidifier   int    `yaml:"humidifier"`
	ModemReset   int    `yaml:"modem_reset"`
	ModemEnable  int    `yaml:"modem_enable"`
	LEDWifi      int    `yaml:"led_wifi"`
	LEDAlarm     int    `yaml:"led_alarm"`
	LEDWarning   int    `yaml:"led_warning"`
	BusDirection int    `yaml:"bus_direction"`
	AlarmInput   int    `yaml:"alarm_input"`
	RunningInput int    `yaml:"running_input"`
	ServiceInput int    `yaml:"service_input"`
}

// MQTTConfig configures telemetry publication. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// WatchdogConfig configures the hardware watchdog. An empty device disables it.
type WatchdogConfig struct {
	Device string `yaml:"device"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MockConfig contains simulator parameters used with -mock.
type MockConfig struct {
	AmbientTemperature float64       `yaml:"ambient_temperature"` // °C
	AmbientHumidity    float64       `yaml:"ambient_humidity"`    // %RH
	HeaterGain         float64       `yaml:"heater_gain"`         // °C above ambient with the heater on
	HumidifierGain     float64       `yaml:"humidifier_gain"`     // %RH above ambient with the humidifier on
	TimeConstant       time.Duration `yaml:"time_constant"`
	NoiseLevel         float64       `yaml:"noise_level"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Port:                "/dev/ttyUSB0",
			BaudRate:            9600,
			Address:             0x01,
			Function:            0x03,
			TemperatureRegister: 0x0001,
			HumidityRegister:    0x0002,
			Timeout:             100 * time.Millisecond,
			Pause:               10 * time.Millisecond,
		},
		Modem: ModemConfig{
			Port:        "/dev/ttyS0",
			BaudRate:    115200,
			SSID:        "SVS_Kursov",
			Passphrase:  "12345678",
			Channel:     1,
			Security:    3,
			Address:     "192.168.4.1",
			ListenPort:  80,
			IdleTimeout: 30,
			RetryAfter:  30 * time.Second,
		},
		Control: ControlConfig{
			Temperature:         Gains{Kp: 2.0, Ki: 0.05, Kd: 1.0},
			Humidity:            Gains{Kp: 1.5, Ki: 0.03, Kd: 0.8},
			OutputMin:           0,
			OutputMax:           1,
			Threshold:           0.5,
			TemperatureSetpoint: 22.0,
			HumiditySetpoint:    50.0,
		},
		Schedule: ScheduleConfig{
			Poll:        5 * time.Second,
			Control:     time.Second,
			ReadingWait: 100 * time.Millisecond,
			Transport:   50 * time.Millisecond,
			Bookkeeping: time.Second,
			History:     30 * time.Minute,
			ClientCheck: 10 * time.Second,
			Watchdog:    100 * time.Millisecond,
		},
		GPIO: GPIOConfig{
			Chip:         "gpiochip0",
			Heater:       17,
			Humidifier:   27,
			ModemReset:   22,
			ModemEnable:  23,
			LEDWifi:      5,
			LEDAlarm:     6,
			LEDWarning:   13,
			BusDirection: 18,
			AlarmInput:   19,
			RunningInput: 20,
			ServiceInput: 21,
		},
		MQTT: MQTTConfig{
			ClientID: "climated",
			Topic:    "microclimate/controller",
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			AmbientTemperature: 18.0,
			AmbientHumidity:    35.0,
			HeaterGain:         12.0,
			HumidifierGain:     40.0,
			TimeConstant:       2 * time.Minute,
			NoiseLevel:         0.1,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sensor.Port == "" {
		c.Sensor.Port = def.Sensor.Port
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.Address == 0 {
		c.Sensor.Address = def.Sensor.Address
	}
	if c.Sensor.Function == 0 {
		c.Sensor.Function = def.Sensor.Function
	}
	if c.Sensor.Timeout == 0 {
		c.Sensor.Timeout = def.Sensor.Timeout
	}

	if c.Modem.Port == "" {
		c.Modem.Port = def.Modem.Port
	}
	if c.Modem.BaudRate == 0 {
		c.Modem.BaudRate = def.Modem.BaudRate
	}
	if c.Modem.SSID == "" {
		c.Modem.SSID = def.Modem.SSID
	}
	if c.Modem.Channel == 0 {
		c.Modem.Channel = def.Modem.Channel
	}
	if c.Modem.Address == "" {
		c.Modem.Address = def.Modem.Address
	}
	if c.Modem.ListenPort == 0 {
		c.Modem.ListenPort = def.Modem.ListenPort
	}
	if c.Modem.RetryAfter == 0 {
		c.Modem.RetryAfter = def.Modem.RetryAfter
	}

	if c.Control.OutputMax == 0 {
		c.Control.OutputMax = def.Control.OutputMax
	}
	if c.Control.Threshold == 0 {
		c.Control.Threshold = def.Control.Threshold
	}
	if c.Control.Temperature == (Gains{}) {
		c.Control.Temperature = def.Control.Temperature
	}
	if c.Control.Humidity == (Gains{}) {
		c.Control.Humidity = def.Control.Humidity
	}

	s, d := &c.Schedule, def.Schedule
	for _, p := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&s.Poll, d.Poll},
		{&s.Control, d.Control},
		{&s.ReadingWait, d.ReadingWait},
		{&s.Transport, d.Transport},
		{&s.Bookkeeping, d.Bookkeeping},
		{&s.History, d.History},
		{&s.ClientCheck, d.ClientCheck},
		{&s.Watchdog, d.Watchdog},
	} {
		if *p.v == 0 {
			*p.v = p.def
		}
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
}
