package climate

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/pid"
	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

// Regulator drives one on/off actuator from readings, either through a
// PID controller or from the manual flag.
type Regulator struct {
	name      string
	pid       *pid.Controller
	threshold float32
	readings  <-chan sample.Reading
	store     *state.Store
	output    gpio.Output
	active    *atomic.Bool
	interval  time.Duration
	wait      time.Duration
	logger    *zap.Logger

	measure  func(sample.Reading) float64
	setpoint func(state.Settings) float64
	manual   func(state.Settings) bool
	inhibit  func() bool
}

func newRegulator(name string, gains config.Gains, ctl config.ControlConfig, sched config.ScheduleConfig, store *state.Store, readings <-chan sample.Reading, output gpio.Output, active *atomic.Bool, logger *zap.Logger) *Regulator {
	c := pid.New(gains.Kp, gains.Ki, gains.Kd)
	c.SetOutputLimits(ctl.OutputMin, ctl.OutputMax)
	if output == nil {
		output = gpio.Nop{}
	}
	return &Regulator{
		name:      name,
		pid:       c,
		threshold: ctl.Threshold,
		readings:  readings,
		store:     store,
		output:    output,
		active:    active,
		interval:  sched.Control,
		wait:      sched.ReadingWait,
		logger:    logging.OrNop(logger).Named(name),
	}
}

// NewHeating creates the temperature regulator driving the heater.
func NewHeating(ctl config.ControlConfig, sched config.ScheduleConfig, store *state.Store, readings <-chan sample.Reading, heater gpio.Output, logger *zap.Logger) *Regulator {
	r := newRegulator("heating", ctl.Temperature, ctl, sched, store, readings, heater, &store.Flags.HeatingActive, logger)
	r.measure = func(s sample.Reading) float64 { return s.Temperature }
	r.setpoint = func(s state.Settings) float64 { return s.TemperatureSetpoint }
	r.manual = func(s state.Settings) bool { return s.HeatingEnabled }
	return r
}

// NewHumidification creates the humidity regulator driving the humidifier.
// The humidifier is held off while the humidifier alarm is asserted.
func NewHumidification(ctl config.ControlConfig, sched config.ScheduleConfig, store *state.Store, readings <-chan sample.Reading, humidifier gpio.Output, logger *zap.Logger) *Regulator {
	r := newRegulator("humidification", ctl.Humidity, ctl, sched, store, readings, humidifier, &store.Flags.HumidificationActive, logger)
	r.measure = func(s sample.Reading) float64 { return s.Humidity }
	r.setpoint = func(s state.Settings) float64 { return s.HumiditySetpoint }
	r.manual = func(s state.Settings) bool { return s.HumidificationEnabled }
	r.inhibit = store.Flags.HumidifierAlarm.Load
	return r
}

// Run regulates until ctx is cancelled, then switches the actuator off.
func (r *Regulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.drive(false)

	for {
		r.Step(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step waits briefly for the latest reading and updates the actuator. The
// actuator is left unchanged when no reading arrives, unless inhibited.
func (r *Regulator) Step(ctx context.Context) {
	reading, ok := r.next(ctx)

	if r.inhibit != nil && r.inhibit() {
		r.drive(false)
		return
	}
	if !ok {
		return
	}

	settings := r.store.Settings()
	var on bool
	if settings.AutoMode {
		out := r.pid.Compute(float32(r.measure(reading)), float32(r.setpoint(settings)))
		on = out > r.threshold
	} else {
		on = r.manual(settings)
	}
	r.drive(on)
}

// Controller exposes the PID state for inspection.
func (r *Regulator) Controller() *pid.Controller {
	return r.pid
}

func (r *Regulator) next(ctx context.Context) (sample.Reading, bool) {
	t := time.NewTimer(r.wait)
	defer t.Stop()
	select {
	case reading := <-r.readings:
		return reading, true
	case <-t.C:
	case <-ctx.Done():
	}
	return sample.Reading{}, false
}

func (r *Regulator) drive(on bool) {
	if err := r.output.Set(on); err != nil {
		r.logger.Warn("Failed to drive output", zap.Bool("on", on), zap.Error(err))
		return
	}
	if r.active.Swap(on) != on {
		r.logger.Info("Output changed", zap.Bool("on", on))
	}
}
