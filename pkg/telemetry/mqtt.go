package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

const (
	publishTimeout       = 5 * time.Second
	connectRetryInterval = 5 * time.Second
)

// ErrNotConnected is returned by publishes made while the broker is
// unreachable. Such messages are dropped.
var ErrNotConnected = errors.New("mqtt: not connected")

// MQTT publishes to a broker.
type MQTT struct {
	client paho.Client
	prefix string
	logger *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

var _ Publisher = (*MQTT)(nil)

// NewMQTT starts connecting to the configured broker and returns without
// waiting for the connection. An unreachable broker is retried in the
// background for the life of the publisher.
func NewMQTT(cfg config.MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: no broker configured")
	}
	logger = logging.OrNop(logger)
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})

	p := &MQTT{
		client: paho.NewClient(opts),
		prefix: strings.TrimSuffix(cfg.Topic, "/"),
		logger: logger,
		done:   make(chan struct{}),
	}

	token := p.client.Connect()
	go func() {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				logger.Warn("MQTT connect abandoned", zap.Error(err))
			}
		case <-p.done:
		}
	}()

	return p, nil
}

func (p *MQTT) topic(suffix string) string {
	return p.prefix + "/" + suffix
}

func (p *MQTT) publish(topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	// QoS 0 (at-most-once), not retained
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishReading sends a reading.
func (p *MQTT) PublishReading(r sample.Reading) error {
	payload, err := FormatReading(r)
	if err != nil {
		return fmt.Errorf("format reading: %w", err)
	}
	return p.publish(p.topic(TopicReading), payload)
}

// PublishStatus sends a status snapshot.
func (p *MQTT) PublishStatus(st state.Status) error {
	payload, err := FormatStatus(st)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return p.publish(p.topic(TopicStatus), payload)
}

// IsConnected reports whether the broker connection is up.
func (p *MQTT) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker and stops connection retries.
func (p *MQTT) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
