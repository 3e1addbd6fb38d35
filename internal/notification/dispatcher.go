// Package notification emits billing events for an external delivery
// collaborator. Dispatch is fire-and-forget: it never blocks or fails the
// transaction that produced the event.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voyara/voyara/internal/config"
	"github.com/voyara/voyara/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel delivery workers subscribe to.
const Channel = "voyara.billing.events"

// Event names emitted by the engine.
const (
	EventCommissionApproved     = "commission.approved"
	EventPayoutBatchProcessed   = "payout.batch_processed"
	EventInvoicePaymentReceived = "invoice.payment_received"
)

// Event is one notification to be delivered out of band.
type Event struct {
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Dispatcher publishes events after the surrounding transaction commits.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// Module provides the event dispatcher.
var Module = fx.Module("notification",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *telemetry.Metrics
}

// New returns a Redis-backed dispatcher when Redis is configured and a
// logging no-op otherwise.
func New(p Params) Dispatcher {
	log := p.Log.Named("notification")
	if p.Cfg.RedisAddr == "" {
		log.Info("redis not configured, notification events will only be logged")
		return &logDispatcher{log: log, metrics: p.Metrics}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Cfg.RedisAddr,
		Password: p.Cfg.RedisPassword,
	})
	return &redisDispatcher{client: client, log: log, metrics: p.Metrics}
}

type redisDispatcher struct {
	client  *redis.Client
	log     *zap.Logger
	metrics *telemetry.Metrics
}

func (d *redisDispatcher) Dispatch(ctx context.Context, event Event) {
	// Detach from the caller's context so a cancelled request cannot drop
	// an already-committed event; cap the publish itself.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	body, err := json.Marshal(event)
	if err != nil {
		d.log.Error("marshal event", zap.String("event", event.Name), zap.Error(err))
		d.metrics.ObserveNotification(event.Name, "error")
		return
	}

	if err := d.client.Publish(ctx, Channel, body).Err(); err != nil {
		d.log.Warn("publish event", zap.String("event", event.Name), zap.Error(err))
		d.metrics.ObserveNotification(event.Name, "error")
		return
	}
	d.metrics.ObserveNotification(event.Name, "ok")
}

type logDispatcher struct {
	log     *zap.Logger
	metrics *telemetry.Metrics
}

func (d *logDispatcher) Dispatch(_ context.Context, event Event) {
	d.log.Info("event", zap.String("name", event.Name), zap.Any("payload", event.Payload))
	d.metrics.ObserveNotification(event.Name, "logged")
}
