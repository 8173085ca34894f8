// Package climate runs the controller: sensor polling, the two regulators,
// the client transport and the watchdog, each as its own task.
package climate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/esp"
	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/modbus"
	"github.com/itohio/microclimate/pkg/serialport"
	"github.com/itohio/microclimate/pkg/state"
	"github.com/itohio/microclimate/pkg/telemetry"
	"github.com/itohio/microclimate/pkg/watchdog"
	"github.com/itohio/microclimate/pkg/web"
)

// Deps are the collaborators a System is built from. Publisher, Watchdog,
// Logger, Now and ModemTiming are optional.
type Deps struct {
	Config      *config.Config
	Pins        *gpio.Pins
	Sensor      serialport.Port
	Modem       serialport.Port
	Publisher   telemetry.Publisher
	Watchdog    watchdog.Kicker
	Logger      *zap.Logger
	Now         func() time.Time
	ModemTiming *esp.Timing
}

// System is the assembled controller.
type System struct {
	cfg       *config.Config
	pins      *gpio.Pins
	store     *state.Store
	feed      *state.Feed
	queue     *web.Queue
	bridge    *esp.Bridge
	poller    *Poller
	heating   *Regulator
	humidity  *Regulator
	transport *Transport
	watchdog  watchdog.Kicker
	logger    *zap.Logger
}

// InitialSettings returns the settings the controller starts with.
func InitialSettings(ctl config.ControlConfig) state.Settings {
	return state.Settings{
		TemperatureSetpoint: ctl.TemperatureSetpoint,
		HumiditySetpoint:    ctl.HumiditySetpoint,
		AutoMode:            !ctl.ManualMode,
	}
}

// New wires every task.
func New(d Deps) (*System, error) {
	if d.Config == nil {
		return nil, errors.New("config is required")
	}
	if d.Pins == nil {
		return nil, errors.New("pins are required")
	}
	if d.Sensor == nil || d.Modem == nil {
		return nil, errors.New("sensor and modem ports are required")
	}
	if d.Publisher == nil {
		d.Publisher = telemetry.Nop{}
	}
	if d.Watchdog == nil {
		d.Watchdog = watchdog.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg := d.Config
	logger := logging.OrNop(d.Logger)

	store := state.NewStore(InitialSettings(cfg.Control))
	feed := &state.Feed{}
	queue := web.NewQueue(web.QueueCapacity)

	bus := modbus.NewClient(d.Sensor, cfg.Sensor.Address,
		modbus.WithTimeout(cfg.Sensor.Timeout),
		modbus.WithFunction(cfg.Sensor.Function),
		modbus.WithDirection(d.Pins.BusDirection),
		modbus.WithLogger(logger.Named("modbus")),
	)

	bridgeOpts := []esp.Option{
		esp.WithReset(d.Pins.ModemReset),
		esp.WithEnable(d.Pins.ModemEnable),
		esp.WithLogger(logger.Named("esp")),
	}
	if d.ModemTiming != nil {
		bridgeOpts = append(bridgeOpts, esp.WithTiming(*d.ModemTiming))
	}
	bridge := esp.New(d.Modem, esp.AccessPoint{
		SSID:        cfg.Modem.SSID,
		Passphrase:  cfg.Modem.Passphrase,
		Channel:     cfg.Modem.Channel,
		Security:    cfg.Modem.Security,
		Address:     cfg.Modem.Address,
		Port:        cfg.Modem.ListenPort,
		IdleTimeout: cfg.Modem.IdleTimeout,
	}, bridgeOpts...)

	dispatcher := web.NewDispatcher(web.NewRenderer(store, d.Now), queue, logger.Named("web"))
	applier := web.NewApplier(store, queue, logger.Named("commands"))

	s := &System{
		cfg:      cfg,
		pins:     d.Pins,
		store:    store,
		feed:     feed,
		queue:    queue,
		bridge:   bridge,
		watchdog: d.Watchdog,
		logger:   logger,
	}
	s.heating = NewHeating(cfg.Control, cfg.Schedule, store, feed.Subscribe(), d.Pins.Heater, logger)
	s.humidity = NewHumidification(cfg.Control, cfg.Schedule, store, feed.Subscribe(), d.Pins.Humidifier, logger)
	s.poller = NewPoller(bus, cfg.Sensor, cfg.Schedule, store, feed, d.Pins, d.Publisher, d.Now, logger)
	s.transport = NewTransport(bridge, dispatcher, applier, store, cfg.Schedule, cfg.Modem.RetryAfter, d.Now, logger)
	return s, nil
}

// Store returns the shared state.
func (s *System) Store() *state.Store {
	return s.store
}

// Link returns the modem bridge.
func (s *System) Link() *esp.Bridge {
	return s.bridge
}

// Run starts every task and blocks until ctx is cancelled or a task fails.
// Both actuators are switched off before it returns.
func (s *System) Run(ctx context.Context) error {
	s.logger.Info("Controller starting",
		zap.Float64("temperature_setpoint", s.store.Settings().TemperatureSetpoint),
		zap.Float64("humidity_setpoint", s.store.Settings().HumiditySetpoint),
		zap.Bool("auto_mode", s.store.Settings().AutoMode),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.poller.Run(gctx) })
	g.Go(func() error { return s.heating.Run(gctx) })
	g.Go(func() error { return s.humidity.Run(gctx) })
	g.Go(func() error { return s.transport.Run(gctx) })
	g.Go(func() error {
		return feedWatchdog(gctx, s.watchdog, s.cfg.Schedule.Watchdog, s.logger.Named("watchdog"))
	})

	err := g.Wait()
	s.shutdown()

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logger.Info("Controller stopped")
		return nil
	}
	return fmt.Errorf("controller stopped: %w", err)
}

func (s *System) shutdown() {
	for _, o := range []struct {
		name string
		out  gpio.Output
	}{
		{"heater", s.pins.Heater},
		{"humidifier", s.pins.Humidifier},
	} {
		if o.out == nil {
			continue
		}
		if err := o.out.Set(false); err != nil {
			s.logger.Error("Failed to switch off", zap.String("output", o.name), zap.Error(err))
		}
	}
	s.store.Flags.HeatingActive.Store(false)
	s.store.Flags.HumidificationActive.Store(false)
}
