package state

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/microclimate/pkg/sample"
)

func TestNewStore(t *testing.T) {
	s := NewStore(DefaultSettings())

	assert.Equal(t, Settings{TemperatureSetpoint: 22, HumiditySetpoint: 50, AutoMode: true}, s.Settings())
	assert.Equal(t, sample.Reading{}, s.Reading())
	assert.Empty(t, s.History())
	assert.False(t, s.Flags.Connected.Load())
}

func TestNewStore_ClampsInitial(t *testing.T) {
	s := NewStore(Settings{TemperatureSetpoint: 80, HumiditySetpoint: math.NaN()})

	assert.Equal(t, 60.0, s.Settings().TemperatureSetpoint)
	assert.Equal(t, 50.0, s.Settings().HumiditySetpoint)
}

func TestUpdateSettings_Clamp(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		hum      float64
		wantTemp float64
		wantHum  float64
	}{
		{"in range", 25.5, 65, 25.5, 65},
		{"above", 999, 150, 60, 100},
		{"below", -40, -50, -10, 0},
		{"bounds", -10, 100, -10, 100},
		{"nan keeps previous", math.NaN(), math.NaN(), 22, 50},
		{"inf", math.Inf(1), math.Inf(-1), 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(DefaultSettings())
			got := s.UpdateSettings(func(st *Settings) {
				st.TemperatureSetpoint = tt.temp
				st.HumiditySetpoint = tt.hum
			})
			assert.Equal(t, tt.wantTemp, got.TemperatureSetpoint)
			assert.Equal(t, tt.wantHum, got.HumiditySetpoint)
			assert.Equal(t, got, s.Settings())
		})
	}
}

func TestUpdateSettings_ReadModifyWrite(t *testing.T) {
	s := NewStore(DefaultSettings())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdateSettings(func(st *Settings) { st.HumiditySetpoint += 0.5 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 75.0, s.Settings().HumiditySetpoint)
}

func TestReading_Copy(t *testing.T) {
	s := NewStore(DefaultSettings())
	r := sample.Reading{Temperature: 21.5, Humidity: 44, Timestamp: 202602271430}
	s.SetReading(r)

	got := s.Reading()
	got.Temperature = 99
	assert.Equal(t, r, s.Reading())
}

func TestStatus(t *testing.T) {
	s := NewStore(DefaultSettings())
	s.SetReading(sample.Reading{Temperature: 19.5, Humidity: 38})
	s.Flags.Connected.Store(true)
	s.Flags.HeatingActive.Store(true)
	s.Flags.HumidifierService.Store(true)

	st := s.Status()
	assert.Equal(t, 19.5, st.Reading.Temperature)
	assert.True(t, st.Settings.AutoMode)
	assert.True(t, st.Connected)
	assert.True(t, st.HeatingActive)
	assert.False(t, st.HumidificationActive)
	assert.False(t, st.HumidifierAlarm)
	assert.True(t, st.HumidifierService)
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(DefaultSettings())

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			s.SetReading(sample.Reading{Temperature: float64(i), Timestamp: sample.Stamp(i)})
			assert.NoError(t, s.AppendHistory(s.Reading()))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.UpdateSettings(func(st *Settings) { st.AutoMode = !st.AutoMode })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			st := s.Status()
			assert.LessOrEqual(t, len(s.History()), HistoryCapacity)
			assert.GreaterOrEqual(t, st.Settings.TemperatureSetpoint, -10.0)
		}
	}()
	wg.Wait()

	assert.Equal(t, float64(200), s.History()[0].Temperature)
	assert.True(t, s.Settings().AutoMode)
}
