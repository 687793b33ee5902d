package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/clickhook/internal/app/model"
	"go.uber.org/zap"
)

const (
	fetchBatch   = 10
	fetchMaxWait = 5 * time.Second
	fetchBackoff = time.Second
)

// EventConsumer pulls link events from JetStream and hands them to a sink, normally the Notifier.
type EventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	sink   EventSink
}

// NewEventConsumer creates a new link event consumer
func NewEventConsumer(js nats.JetStreamContext, logger *zap.Logger, sink EventSink) *EventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{js: js, logger: logger, sink: sink}
}

// Start begins consuming link events until ctx is cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := EnsureLinkEventStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.LinkEventStreamName, model.LinkEventConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.LinkEventStreamName, &nats.ConsumerConfig{
			Durable:       model.LinkEventConsumerName,
			AckPolicy:     nats.AckExplicitPolicy,
			FilterSubject: model.LinkEventSubjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.LinkEventSubjects, model.LinkEventConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *EventConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe link events", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			c.logger.Info("link event consumer stopped")
			return
		}

		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch link events", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(fetchBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msg *nats.Msg) {
	if err := c.dispatch(ctx, msg.Subject, msg.Data); err != nil {
		c.logger.Error("dropping undecodable link event", zap.String("subject", msg.Subject), zap.Error(err))
		_ = msg.Term()
		return
	}
	_ = msg.Ack()
}

func (c *EventConsumer) dispatch(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case model.LinkCreatedSubject:
		var ev model.LinkCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		c.sink.OnLinkCreated(ctx, ev)
	case model.LinkClickedSubject:
		var ev model.LinkClickedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		c.sink.OnLinkClicked(ctx, ev)
	default:
		return fmt.Errorf("unknown subject %q", subject)
	}
	return nil
}
