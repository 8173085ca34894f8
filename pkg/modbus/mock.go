package modbus

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/serialport"
)

// Mock simulates the temperature/humidity sensor behind a serial port. The
// room follows a first-order response towards ambient plus the contribution
// of whichever actuators are on.
type Mock struct {
	cfg      config.MockConfig
	sensor   config.SensorConfig
	heater   func() bool
	humidify func() bool
	now      func() time.Time

	mu          sync.Mutex
	pending     []byte
	readTimeout time.Duration
	closed      bool
	start       time.Time
	last        time.Time
	temperature float64
	humidity    float64
	requests    int

	// Silent makes the sensor ignore requests.
	Silent atomic.Bool
	// Corrupt flips a bit of the next responses' checksum.
	Corrupt atomic.Bool
}

// Ensure Mock implements serialport.Port.
var _ serialport.Port = (*Mock)(nil)

// NewMock creates a simulated sensor. heater and humidifier report the
// current actuator states; either may be nil.
func NewMock(cfg config.MockConfig, sensor config.SensorConfig, heater, humidifier func() bool) *Mock {
	if heater == nil {
		heater = func() bool { return false }
	}
	if humidifier == nil {
		humidifier = func() bool { return false }
	}
	if cfg.TimeConstant <= 0 {
		cfg.TimeConstant = time.Minute
	}
	now := time.Now()
	return &Mock{
		cfg:         cfg,
		sensor:      sensor,
		heater:      heater,
		humidify:    humidifier,
		now:         time.Now,
		readTimeout: sensor.Timeout,
		start:       now,
		last:        now,
		temperature: cfg.AmbientTemperature,
		humidity:    cfg.AmbientHumidity,
	}
}

// SetClimate overrides the simulated temperature and humidity.
func (m *Mock) SetClimate(temperature, humidity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = temperature
	m.humidity = humidity
	m.last = m.now()
}

// Climate returns the simulated temperature and humidity.
func (m *Mock) Climate() (temperature, humidity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temperature, m.humidity
}

// Requests returns the number of valid requests seen.
func (m *Mock) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Write accepts one request frame and queues the response.
func (m *Mock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("port closed")
	}

	address, function, reg, count, err := ParseRequest(b)
	if err != nil || address != m.sensor.Address || count != 1 || m.Silent.Load() {
		return len(b), nil
	}
	m.requests++

	m.step()

	var value uint16
	switch reg {
	case m.sensor.TemperatureRegister:
		value = sample.RawTemperature(m.temperature + m.noise())
	case m.sensor.HumidityRegister:
		value = sample.RawHumidity(sample.ClampHumidity(m.humidity + m.noise()))
	default:
		return len(b), nil
	}

	resp := EncodeResponse(address, function, value)
	if m.Corrupt.Load() {
		resp[ResponseSize-1] ^= 0x01
	}
	m.pending = append(m.pending, resp[:]...)

	return len(b), nil
}

// Read returns queued response bytes. With nothing queued it waits for the
// read timeout and returns 0 bytes, like a real port.
func (m *Mock) Read(b []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(m.pending) == 0 {
		timeout := m.readTimeout
		m.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	n := copy(b, m.pending)
	m.pending = m.pending[n:]
	m.mu.Unlock()
	return n, nil
}

// SetReadTimeout sets how long Read waits on an empty queue.
func (m *Mock) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	m.readTimeout = t
	m.mu.Unlock()
	return nil
}

// ResetInputBuffer discards queued response bytes.
func (m *Mock) ResetInputBuffer() error {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// Drain returns immediately; written frames are handled synchronously.
func (m *Mock) Drain() error {
	return nil
}

// Close stops the simulated sensor.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// step advances the room model to now. Caller holds m.mu.
func (m *Mock) step() {
	now := m.now()
	dt := now.Sub(m.last).Seconds()
	m.last = now
	if dt <= 0 {
		return
	}

	targetTemp := m.cfg.AmbientTemperature
	if m.heater() {
		targetTemp += m.cfg.HeaterGain
	}
	targetHum := m.cfg.AmbientHumidity
	if m.humidify() {
		targetHum += m.cfg.HumidifierGain
	}
	// Warm air holds more water; heating lowers relative humidity.
	targetHum -= (m.temperature - m.cfg.AmbientTemperature) * 1.5

	alpha := math.Min(dt/m.cfg.TimeConstant.Seconds(), 1)
	m.temperature += alpha * (targetTemp - m.temperature)
	m.humidity += alpha * (targetHum - m.humidity)
	m.humidity = sample.ClampHumidity(m.humidity)
}

// noise returns a small deterministic disturbance. Caller holds m.mu.
func (m *Mock) noise() float64 {
	if m.cfg.NoiseLevel == 0 {
		return 0
	}
	elapsed := float64(m.last.Sub(m.start).Milliseconds())
	return (math.Sin(elapsed*0.001) + math.Cos(elapsed*0.0013)) * m.cfg.NoiseLevel * 0.5
}
