package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

func TestNewMQTT_BrokerDown(t *testing.T) {
	start := time.Now()
	p, err := NewMQTT(config.MQTTConfig{
		Broker:   "tcp://127.0.0.1:1",
		ClientID: "climated-test",
		Topic:    "climate/",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Less(t, time.Since(start), time.Second, "construction does not wait for the broker")

	assert.False(t, p.IsConnected())

	start = time.Now()
	assert.ErrorIs(t, p.PublishReading(sample.Reading{Temperature: 21}), ErrNotConnected)
	assert.ErrorIs(t, p.PublishStatus(state.Status{}), ErrNotConnected)
	assert.Less(t, time.Since(start), publishTimeout, "publishes are dropped without waiting")

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestNewMQTT_NoBroker(t *testing.T) {
	_, err := NewMQTT(config.MQTTConfig{}, nil)
	assert.Error(t, err)
}

func TestMQTT_Topic(t *testing.T) {
	p, err := NewMQTT(config.MQTTConfig{Broker: "tcp://127.0.0.1:1", Topic: "climate/"}, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "climate/reading", p.topic(TopicReading))
}
