package modbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/gpio"
)

func testSensor() config.SensorConfig {
	return config.SensorConfig{
		Address:             0x01,
		Function:            FuncCodeReadHoldingRegisters,
		TemperatureRegister: 0x0001,
		HumidityRegister:    0x0002,
		Timeout:             20 * time.Millisecond,
	}
}

func newTestMock() *Mock {
	m := NewMock(config.MockConfig{TimeConstant: time.Hour}, testSensor(), nil, nil)
	frozen := time.Now()
	m.now = func() time.Time { return frozen }
	m.SetClimate(23.5, 41.2)
	return m
}

func TestClient_ReadRegister(t *testing.T) {
	m := newTestMock()
	dir := &gpio.FakeOutput{}
	c := NewClient(m, 0x01, WithTimeout(20*time.Millisecond), WithDirection(dir))

	raw, err := c.ReadRegister(context.Background(), 0x0001)
	require.NoError(t, err)
	assert.Equal(t, uint16(235), raw)

	raw, err = c.ReadRegister(context.Background(), 0x0002)
	require.NoError(t, err)
	assert.Equal(t, uint16(412), raw)

	assert.Equal(t, 2, m.Requests())
	assert.Equal(t, []bool{true, false, true, false}, dir.History())
	assert.False(t, dir.On())
}

type busEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *busEvents) add(ev string) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *busEvents) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type recordingPort struct {
	*Mock
	events   *busEvents
	drainErr error
}

func (p *recordingPort) Write(b []byte) (int, error) {
	p.events.add("write")
	return p.Mock.Write(b)
}

func (p *recordingPort) Drain() error {
	p.events.add("drain")
	return p.drainErr
}

type recordingDirection struct {
	events *busEvents
}

func (d *recordingDirection) Set(on bool) error {
	if on {
		d.events.add("transmit")
	} else {
		d.events.add("receive")
	}
	return nil
}

func (d *recordingDirection) Close() error { return nil }

func TestClient_DirectionHeldUntilDrained(t *testing.T) {
	events := &busEvents{}
	port := &recordingPort{Mock: newTestMock(), events: events}
	c := NewClient(port, 0x01, WithTimeout(20*time.Millisecond), WithDirection(&recordingDirection{events: events}))

	_, err := c.ReadRegister(context.Background(), 0x0001)
	require.NoError(t, err)
	assert.Equal(t, []string{"transmit", "write", "drain", "receive"}, events.list())
}

func TestClient_DrainError(t *testing.T) {
	events := &busEvents{}
	port := &recordingPort{Mock: newTestMock(), events: events, drainErr: errors.New("tcdrain failed")}
	c := NewClient(port, 0x01, WithTimeout(20*time.Millisecond), WithDirection(&recordingDirection{events: events}))

	_, err := c.ReadRegister(context.Background(), 0x0001)
	assert.Error(t, err)
	assert.Equal(t, "receive", events.list()[len(events.list())-1], "direction is released on failure")
}

func TestClient_ReadRegister_NegativeTemperature(t *testing.T) {
	m := newTestMock()
	m.SetClimate(-7.5, 80)
	c := NewClient(m, 0x01, WithTimeout(20*time.Millisecond))

	raw, err := c.ReadRegister(context.Background(), 0x0001)
	require.NoError(t, err)
	assert.Equal(t, int16(-75), int16(raw))
}

func TestClient_ReadRegister_Timeout(t *testing.T) {
	m := newTestMock()
	m.Silent.Store(true)
	c := NewClient(m, 0x01, WithTimeout(15*time.Millisecond))

	start := time.Now()
	_, err := c.ReadRegister(context.Background(), 0x0001)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestClient_ReadRegister_BadCRC(t *testing.T) {
	m := newTestMock()
	m.Corrupt.Store(true)
	c := NewClient(m, 0x01, WithTimeout(20*time.Millisecond))

	_, err := c.ReadRegister(context.Background(), 0x0001)
	assert.ErrorIs(t, err, ErrCRC)
}

func TestClient_ReadRegister_WrongAddress(t *testing.T) {
	m := newTestMock()
	c := NewClient(m, 0x07, WithTimeout(15*time.Millisecond))

	// The mock only answers address 0x01.
	_, err := c.ReadRegister(context.Background(), 0x0001)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_ReadRegister_Cancelled(t *testing.T) {
	m := newTestMock()
	c := NewClient(m, 0x01)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ReadRegister(ctx, 0x0001)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Requests())
}

func TestClient_StaleBytesDiscarded(t *testing.T) {
	m := newTestMock()
	c := NewClient(m, 0x01, WithTimeout(20*time.Millisecond))

	// Leave an unread response queued.
	req := BuildRequest(0x01, FuncCodeReadHoldingRegisters, 0x0002, 1)
	_, err := m.Write(req[:])
	require.NoError(t, err)

	raw, err := c.ReadRegister(context.Background(), 0x0001)
	require.NoError(t, err)
	assert.Equal(t, uint16(235), raw)
}

func TestMock_ThermalModel(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	heater := false
	m := NewMock(config.MockConfig{
		AmbientTemperature: 18,
		AmbientHumidity:    40,
		HeaterGain:         10,
		HumidifierGain:     30,
		TimeConstant:       time.Minute,
	}, testSensor(), func() bool { return heater }, nil)
	m.now = func() time.Time { return now }
	m.last = now

	heater = true
	for i := 0; i < 60; i++ {
		now = now.Add(5 * time.Second)
		req := BuildRequest(0x01, FuncCodeReadHoldingRegisters, 0x0001, 1)
		_, err := m.Write(req[:])
		require.NoError(t, err)
	}

	temp, hum := m.Climate()
	assert.InDelta(t, 28, temp, 0.5)
	assert.Less(t, hum, 40.0)

	heater = false
	for i := 0; i < 120; i++ {
		now = now.Add(5 * time.Second)
		req := BuildRequest(0x01, FuncCodeReadHoldingRegisters, 0x0001, 1)
		_, err := m.Write(req[:])
		require.NoError(t, err)
	}
	temp, _ = m.Climate()
	assert.InDelta(t, 18, temp, 0.5)
}
