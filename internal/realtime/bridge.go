package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"realtime-service/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Bridge subscribes to the backing Redis pub/sub channels and feeds decoded
// events into the hub. Reconnection after transport loss is its own concern;
// while disconnected, bus-originated broadcasts simply do not happen.
type Bridge struct {
	hub   *Hub
	redis *redis.Client

	notificationsChannel string
	telemetryChannel     string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBridge(hub *Hub, redisClient *redis.Client, cfg *config.BusConfig) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		hub:                  hub,
		redis:                redisClient,
		notificationsChannel: cfg.NotificationsChannel,
		telemetryChannel:     cfg.TelemetryChannel,
		ctx:                  ctx,
		cancel:               cancel,
	}
}

// Run consumes the bus until Stop is called, reconnecting with exponential
// backoff whenever the subscription is lost.
func (b *Bridge) Run() {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	for {
		err := b.consume(bo)
		if b.ctx.Err() != nil {
			slog.Info("Bus bridge shutting down")
			return
		}

		wait := bo.NextBackOff()
		slog.Warn("Bus subscription lost, reconnecting", "error", err, "retryIn", wait)

		select {
		case <-time.After(wait):
		case <-b.ctx.Done():
			slog.Info("Bus bridge shutting down")
			return
		}
	}
}

func (b *Bridge) Stop() {
	b.cancel()
}

func (b *Bridge) consume(bo *backoff.ExponentialBackOff) error {
	pubsub := b.redis.Subscribe(b.ctx, b.notificationsChannel, b.telemetryChannel)
	defer pubsub.Close()

	// Wait for the subscription confirmation before declaring the bridge up.
	if _, err := pubsub.Receive(b.ctx); err != nil {
		return err
	}

	bo.Reset()
	slog.Info("Bus bridge subscribed",
		"channels", []string{b.notificationsChannel, b.telemetryChannel})

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			b.dispatch(msg.Channel, []byte(msg.Payload))

		case <-b.ctx.Done():
			return nil
		}
	}
}

// dispatch decodes one bus payload and routes it. Decode failures are logged
// and dropped; one malformed upstream message must not take the bridge down.
func (b *Bridge) dispatch(channel string, payload []byte) {
	switch channel {
	case b.telemetryChannel:
		var ev TelemetryEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			slog.Warn("Dropping undecodable telemetry event", "error", err)
			return
		}
		b.hub.HandleTelemetryEvent(&ev)

	case b.notificationsChannel:
		var ev NotificationEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			slog.Warn("Dropping undecodable notification event", "error", err)
			return
		}
		b.hub.HandleNotificationEvent(&ev)

	default:
		slog.Debug("Ignoring message on unexpected channel", "channel", channel)
	}
}
