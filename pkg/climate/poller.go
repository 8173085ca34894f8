package climate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
	"github.com/itohio/microclimate/pkg/telemetry"
)

// RegisterReader reads one holding register from the sensor.
type RegisterReader interface {
	ReadRegister(ctx context.Context, reg uint16) (uint16, error)
}

// Poller reads the sensor, records the result and refreshes the indicators.
type Poller struct {
	bus       RegisterReader
	sensor    config.SensorConfig
	interval  time.Duration
	history   time.Duration
	store     *state.Store
	feed      *state.Feed
	pins      *gpio.Pins
	publisher telemetry.Publisher
	now       func() time.Time
	logger    *zap.Logger

	reading  sample.Reading
	lastSave time.Time
}

// NewPoller creates a poller. The first history entry is saved one history
// interval after creation.
func NewPoller(bus RegisterReader, sensor config.SensorConfig, sched config.ScheduleConfig, store *state.Store, feed *state.Feed, pins *gpio.Pins, publisher telemetry.Publisher, now func() time.Time, logger *zap.Logger) *Poller {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = telemetry.Nop{}
	}
	return &Poller{
		bus:       bus,
		sensor:    sensor,
		interval:  sched.Poll,
		history:   sched.History,
		store:     store,
		feed:      feed,
		pins:      pins,
		publisher: publisher,
		now:       now,
		logger:    logging.OrNop(logger).Named("poller"),
		reading:   store.Reading(),
		lastSave:  now(),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs one cycle and returns the reading it published. A failed
// register read keeps the previous value of that quantity.
func (p *Poller) Poll(ctx context.Context) sample.Reading {
	if raw, err := p.bus.ReadRegister(ctx, p.sensor.TemperatureRegister); err != nil {
		p.logger.Warn("Temperature read failed", zap.Error(err))
	} else {
		p.reading.Temperature = sample.Temperature(raw)
	}

	if err := sleep(ctx, p.sensor.Pause); err != nil {
		return p.reading
	}

	if raw, err := p.bus.ReadRegister(ctx, p.sensor.HumidityRegister); err != nil {
		p.logger.Warn("Humidity read failed", zap.Error(err))
	} else {
		p.reading.Humidity = sample.Humidity(raw)
	}

	now := p.now()
	p.reading.Timestamp = sample.PackTimestamp(now)
	r := p.reading

	p.store.SetReading(r)
	p.feed.Publish(r)

	if now.Sub(p.lastSave) >= p.history {
		if err := p.store.AppendHistory(r); err != nil {
			p.logger.Warn("Failed to save history", zap.Error(err))
		} else {
			p.logger.Debug("History saved", zap.Stringer("timestamp", r.Timestamp))
		}
		p.lastSave = now
	}

	p.sampleInputs()
	p.refreshIndicators(r)

	if err := p.publisher.PublishReading(r); err != nil {
		p.logger.Debug("Failed to publish reading", zap.Error(err))
	}
	if err := p.publisher.PublishStatus(p.store.Status()); err != nil {
		p.logger.Debug("Failed to publish status", zap.Error(err))
	}

	p.logger.Debug("Reading",
		zap.Float64("temperature", r.Temperature),
		zap.Float64("humidity", r.Humidity),
	)
	return r
}

func (p *Poller) sampleInputs() {
	flags := &p.store.Flags
	for _, in := range []struct {
		name  string
		input gpio.Input
		flag  interface{ Store(bool) }
	}{
		{"alarm", p.pins.Alarm, &flags.HumidifierAlarm},
		{"running", p.pins.Running, &flags.HumidifierRunning},
		{"service", p.pins.Service, &flags.HumidifierService},
	} {
		if in.input == nil {
			continue
		}
		v, err := in.input.Value()
		if err != nil {
			p.logger.Warn("Failed to read input", zap.String("input", in.name), zap.Error(err))
			continue
		}
		in.flag.Store(v)
	}
}

func (p *Poller) refreshIndicators(r sample.Reading) {
	flags := &p.store.Flags
	alarm := flags.HumidifierAlarm.Load() || !r.InRange()
	warning := !alarm && flags.HeatingActive.Load()

	setLED(p.pins.LEDWifi, flags.Connected.Load(), "wifi", p.logger)
	setLED(p.pins.LEDAlarm, alarm, "alarm", p.logger)
	setLED(p.pins.LEDWarning, warning, "warning", p.logger)
}

func setLED(o gpio.Output, on bool, name string, logger *zap.Logger) {
	if o == nil {
		return
	}
	if err := o.Set(on); err != nil {
		logger.Debug("Failed to set indicator", zap.String("led", name), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
