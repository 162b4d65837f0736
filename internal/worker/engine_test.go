package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/messaging"
)

func TestDispatchFansOutPerTopic(t *testing.T) {
	var calls []string
	record := func(name string, err error) messaging.Handler {
		return func(context.Context, messaging.Message) error {
			calls = append(calls, name)
			return err
		}
	}

	engine, err := NewEngine(Params{
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{Name: "audit", Topic: "buildmart.lifecycle", Handler: record("audit", nil)},
			{Name: "cache", Topic: "buildmart.lifecycle", Handler: record("cache", errors.New("redis down"))},
			{Name: "other", Topic: "elsewhere", Handler: record("other", nil)},
			{Name: "empty", Topic: "", Handler: record("empty", nil)},
		},
	})
	require.NoError(t, err)

	err = engine.Dispatch(context.Background(), messaging.Message{Topic: "buildmart.lifecycle"})
	assert.EqualError(t, err, "redis down")
	assert.Equal(t, []string{"audit", "cache"}, calls)

	calls = nil
	assert.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Topic: "unknown"}))
	assert.Empty(t, calls)
}

func TestStartDisabledIsNoop(t *testing.T) {
	engine, err := NewEngine(Params{Logger: zap.NewNop()})
	require.NoError(t, err)

	assert.NoError(t, engine.start(context.Background()))
	assert.NoError(t, engine.stop(context.Background()))
}
