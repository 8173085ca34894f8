// Command climated runs the climate controller: it polls the temperature and
// humidity sensor, drives the heater and humidifier, and serves the control
// page through the Wi-Fi modem.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/climate"
	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/esp"
	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/modbus"
	"github.com/itohio/microclimate/pkg/serialport"
	"github.com/itohio/microclimate/pkg/telemetry"
	"github.com/itohio/microclimate/pkg/watchdog"
)

const (
	// modemReadTimeout bounds a single read from the modem port.
	modemReadTimeout = 10 * time.Millisecond
	// mockClientInterval spaces the requests of the simulated client.
	mockClientInterval = 5 * time.Second
)

// mockRequests is the browsing session replayed against the simulated modem.
var mockRequests = []string{
	"GET / HTTP/1.1\r\nHost: 192.168.4.1\r\n\r\n",
	"GET /data HTTP/1.1\r\nHost: 192.168.4.1\r\n\r\n",
	"GET /control?heating=1&humidification=1 HTTP/1.1\r\nHost: 192.168.4.1\r\n\r\n",
	"GET /data HTTP/1.1\r\nHost: 192.168.4.1\r\n\r\n",
}

func main() {
	var (
		configFlag      = flag.String("config", "climated.yaml", "Configuration file path")
		mockFlag        = flag.Bool("mock", false, "Use simulated sensor, modem and GPIO instead of hardware, with a simulated client browsing the page")
		listPortsFlag   = flag.Bool("list-ports", false, "List available serial ports and exit")
		sensorPortFlag  = flag.String("sensor-port", "", "Sensor serial port override (e.g., /dev/ttyUSB0)")
		modemPortFlag   = flag.String("modem-port", "", "Modem serial port override (e.g., /dev/ttyS0)")
		writeConfigFlag = flag.Bool("write-config", false, "Write the effective configuration to the config path and exit")
	)
	flag.Parse()

	if *listPortsFlag {
		if err := listPorts(); err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial ports if provided via command line
	if *sensorPortFlag != "" {
		cfg.Sensor.Port = *sensorPortFlag
	}
	if *modemPortFlag != "" {
		cfg.Modem.Port = *modemPortFlag
	}

	if *writeConfigFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		return
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := serve(ctx, cfg, *mockFlag, logger)
	stop()
	os.Exit(code)
}

// serve runs the controller and returns the process exit code. The logger
// is flushed before returning.
func serve(ctx context.Context, cfg *config.Config, mock bool, logger *zap.Logger) int {
	defer logger.Sync() //nolint:errcheck

	if err := run(ctx, cfg, mock, logger); err != nil {
		logger.Error("Controller failed", zap.Error(err))
		return 1
	}
	return 0
}

func listPorts() error {
	ports, err := serialport.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, mock bool, logger *zap.Logger) error {
	hw, err := openHardware(cfg, mock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn("Failed to release hardware", zap.Error(err))
		}
	}()

	sys, err := climate.New(climate.Deps{
		Config:    cfg,
		Pins:      hw.pins,
		Sensor:    hw.sensor,
		Modem:     hw.modem,
		Publisher: hw.publisher,
		Watchdog:  hw.watchdog,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	if hw.sim != nil {
		go simulateClient(ctx, hw.sim, mockClientInterval, logger.Named("client"))
	}
	return sys.Run(ctx)
}

// simulateClient replays mockRequests against the simulated modem, one per
// interval, each on its own connection.
func simulateClient(ctx context.Context, sim *esp.Sim, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logged := make(map[int]int)
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		client := i % len(mockRequests)
		if sent := sim.Sent(client); len(sent) > logged[client] {
			resp := sent[logged[client]:]
			logged[client] = len(sent)
			line, _, _ := strings.Cut(string(resp), "\r\n")
			logger.Debug("Simulated response", zap.Int("client", client), zap.String("status", line), zap.Int("bytes", len(resp)))
		}
		sim.Inject(client, mockRequests[client])
	}
}

// hardware holds everything that must be released on exit.
type hardware struct {
	pins      *gpio.Pins
	sensor    serialport.Port
	modem     serialport.Port
	publisher telemetry.Publisher
	watchdog  watchdog.Kicker

	// sim is the modem in mock mode.
	sim *esp.Sim
}

func (h *hardware) Close() error {
	var errs []error
	if h.watchdog != nil {
		errs = append(errs, h.watchdog.Close())
	}
	if h.publisher != nil {
		errs = append(errs, h.publisher.Close())
	}
	if h.modem != nil {
		errs = append(errs, h.modem.Close())
	}
	if h.sensor != nil {
		errs = append(errs, h.sensor.Close())
	}
	if h.pins != nil {
		errs = append(errs, h.pins.Close())
	}
	return errors.Join(errs...)
}

func openHardware(cfg *config.Config, mock bool, logger *zap.Logger) (_ *hardware, err error) {
	hw := &hardware{}
	defer func() {
		if err != nil {
			hw.Close()
		}
	}()

	if mock {
		logger.Info("Using simulated hardware")
		fake := gpio.NewFakePins()
		hw.pins = &fake.Pins
		hw.sensor = modbus.NewMock(cfg.Mock, cfg.Sensor, fake.Heater.On, fake.Humidifier.On)
		hw.sim = esp.NewSim()
		hw.modem = hw.sim
	} else {
		if hw.pins, err = gpio.OpenPins(cfg.GPIO); err != nil {
			return nil, fmt.Errorf("open gpio: %w", err)
		}
		if hw.sensor, err = serialport.Open(cfg.Sensor.Port, cfg.Sensor.BaudRate, cfg.Sensor.Timeout); err != nil {
			return nil, fmt.Errorf("open sensor port: %w", err)
		}
		if hw.modem, err = serialport.Open(cfg.Modem.Port, cfg.Modem.BaudRate, modemReadTimeout); err != nil {
			return nil, fmt.Errorf("open modem port: %w", err)
		}
	}

	hw.publisher = telemetry.Nop{}
	if cfg.MQTT.Broker != "" {
		pub, err := telemetry.NewMQTT(cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			logger.Warn("Telemetry disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			hw.publisher = pub
		}
	}

	hw.watchdog = watchdog.Nop{}
	if cfg.Watchdog.Device != "" && !mock {
		dev, err := watchdog.Open(cfg.Watchdog.Device)
		if err != nil {
			return nil, err
		}
		hw.watchdog = dev
	}

	return hw, nil
}
