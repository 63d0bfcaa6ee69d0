package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/dance-booking/internal/repository"
)

// Consumer reads the notification queue and stores every message as
// a notification row.
type Consumer struct {
	url   string
	queue string
	store repository.Store
	log   *slog.Logger
}

// NewConsumer wires a consumer.
func NewConsumer(url, queue string, store repository.Store, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, queue: queue, store: store, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff (capped at 30s) whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("notification consumer: dial failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("notification consumer: loop ended, reconnecting", slog.Any("err", err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("notification consumer: set QoS failed", slog.Any("err", err))
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("notification consumer started", slog.String("queue", c.queue))

	for d := range msgs {
		if err := c.handleMessage(ctx, d.Body); err != nil {
			c.log.Error("notification consumer: handle message failed", slog.Any("err", err))
			// malformed messages would loop forever if requeued
			_ = d.Nack(false, !errors.Is(err, errMalformed))
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

var errMalformed = errors.New("malformed message")

// handleMessage stores one delivery.  A notification that is already
// stored (a redelivery) counts as handled.
func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	n, err := ev.Notification()
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return c.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetNotification(ctx, n.ID); err == nil {
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.InsertNotification(ctx, n)
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
