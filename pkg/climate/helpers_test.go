package climate

import (
	"sync"
	"time"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/esp"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sensor.Pause = time.Millisecond
	cfg.Sensor.Timeout = 50 * time.Millisecond
	cfg.Schedule = config.ScheduleConfig{
		Poll:        20 * time.Millisecond,
		Control:     5 * time.Millisecond,
		ReadingWait: 5 * time.Millisecond,
		Transport:   5 * time.Millisecond,
		Bookkeeping: 10 * time.Millisecond,
		History:     30 * time.Minute,
		ClientCheck: 10 * time.Second,
		Watchdog:    5 * time.Millisecond,
	}
	cfg.Modem.RetryAfter = 30 * time.Second
	return cfg
}

func fastTiming() esp.Timing {
	return esp.Timing{
		ResetPulse:    time.Millisecond,
		Settle:        time.Millisecond,
		ProbeAttempts: 5,
		ProbeTimeout:  20 * time.Millisecond,
		ProbeBackoff:  time.Millisecond,
		RestoreDelay:  time.Millisecond,
		Command:       50 * time.Millisecond,
		Configure:     50 * time.Millisecond,
		Secondary:     20 * time.Millisecond,
		Query:         20 * time.Millisecond,
		Prompt:        50 * time.Millisecond,
		SendComplete:  50 * time.Millisecond,
		Close:         20 * time.Millisecond,
		StationCheck:  30 * time.Millisecond,
		Poll:          2 * time.Millisecond,
		Drain:         2 * time.Millisecond,
	}
}
