package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/clickhook/internal/app/model"
	"go.uber.org/zap"
)

// EventPublisher forwards link events to NATS JetStream instead of handling them in-process.
type EventPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

var _ EventSink = (*EventPublisher)(nil)

// NewEventPublisher creates a new link event publisher
func NewEventPublisher(js nats.JetStreamContext, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{js: js, logger: logger}
}

func (p *EventPublisher) OnLinkCreated(ctx context.Context, ev model.LinkCreatedEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if err := p.publish(ctx, model.LinkCreatedSubject, ev.ID, ev); err != nil {
		p.logger.Error("failed to publish link created event", zap.Error(err), zap.String("keyword", ev.Keyword))
	}
}

func (p *EventPublisher) OnLinkClicked(ctx context.Context, ev model.LinkClickedEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if err := p.publish(ctx, model.LinkClickedSubject, ev.ID, ev); err != nil {
		p.logger.Error("failed to publish link clicked event", zap.Error(err), zap.String("event_id", ev.ID))
	}
}

func (p *EventPublisher) publish(ctx context.Context, subject, id string, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, id)

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// EnsureLinkEventStream creates the link event stream when it does not exist yet.
func EnsureLinkEventStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.LinkEventStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.LinkEventStreamName,
		Subjects: []string{model.LinkEventSubjects},
		MaxBytes: model.LinkEventStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}
