// Package lifecycle consumes tender and application events.
package lifecycle

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/events"
	"github.com/Additional-Code/buildmart/internal/messaging"
	coordinator "github.com/Additional-Code/buildmart/internal/service/lifecycle"
	"github.com/Additional-Code/buildmart/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/buildmart/worker/lifecycle")

// Module registers lifecycle worker handlers.
var Module = fx.Module("worker_lifecycle",
	fx.Provide(
		fx.Annotate(
			NewAuditHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewCacheInvalidationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewAuditHandler writes one structured audit line per lifecycle event.
// Undecodable payloads are logged and skipped; retrying cannot fix them.
func NewAuditHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.lifecycle.audit", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		event, err := events.Decode(msg.Value)
		if err != nil {
			logger.Error("undecodable lifecycle event skipped", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		logger.Info("lifecycle event",
			zap.String("type", string(event.Type)),
			zap.String("tender_id", event.TenderID),
			zap.String("application_id", event.ApplicationID),
			zap.String("actor_id", event.ActorID),
			zap.String("status", event.Status),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Name:    "lifecycle.audit",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

// NewCacheInvalidationHandler evicts cached tenders whose status may have moved.
// API replicas evict locally on write; this covers the other replicas.
func NewCacheInvalidationHandler(evicter coordinator.CacheEvicter, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		if t, ok := msg.Headers[events.HeaderType]; ok && !touchesTender(events.Type(t)) {
			return nil
		}
		event, err := events.Decode(msg.Value)
		if err != nil || event.TenderID == "" || !touchesTender(event.Type) {
			return nil
		}
		evicter.Evict(ctx, event.TenderID)
		return nil
	}

	return worker.HandlerRegistration{
		Name:    "lifecycle.cache_invalidation",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

func touchesTender(t events.Type) bool {
	switch t {
	case events.TenderCreated, events.TenderUpdated, events.ApplicationAccepted:
		return true
	default:
		return false
	}
}
