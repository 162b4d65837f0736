package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
)

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Deliver(context.Background(), func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Message{}, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeliverGivesUp(t *testing.T) {
	calls := 0
	err := Deliver(context.Background(), func(context.Context, Message) error {
		calls++
		return errors.New("poison")
	}, Message{}, 2)

	assert.EqualError(t, err, "poison")
	assert.Equal(t, 2, calls)
}

func TestDeliverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Deliver(ctx, func(context.Context, Message) error {
		calls++
		cancel()
		return errors.New("failed")
	}, Message{}, 5)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFromKafkaCopiesHeaders(t *testing.T) {
	msg := fromKafka(kafka.Message{
		Topic:   "buildmart.lifecycle",
		Key:     []byte("tender-1"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte("tender.created")}},
		Offset:  7,
		Time:    time.Unix(0, 0),
	})

	assert.Equal(t, "tender-1", string(msg.Key))
	assert.Equal(t, "tender.created", msg.Headers["event-type"])
	assert.Equal(t, int64(7), msg.Offset)
}

func TestNewClientDisabledIsNoop(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Kafka.Topic = "buildmart.lifecycle"

	client, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "buildmart.lifecycle", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), nil, nil, nil))

	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "rabbit"
	_, err = NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}
