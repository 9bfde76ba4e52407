package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vienna-backend/internal/config"
	"vienna-backend/internal/logging"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ProcurementCreated = "procurement.created"
	ProcurementUpdated = "procurement.updated"
	ProcurementDeleted = "procurement.deleted"

	SaleCreated = "sale.created"
	SaleUpdated = "sale.updated"
	SaleDeleted = "sale.deleted"

	OrderCreated       = "order.created"
	OrderFulfilled     = "order.fulfilled"
	OrderStatusChanged = "order.status_changed"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

func New(eventType, entityID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes e and logs a failure instead of returning it; the change
// behind the event is already committed.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logging.LogError("events", "Emit", e.Type, e.EntityID, err)
	}
}

// LogPublisher writes events to the service log.
type LogPublisher struct {
	Logger *logrus.Logger
}

func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	l := p.Logger
	if l == nil {
		l = logging.GetLogger()
	}
	l.WithFields(logrus.Fields{
		"event_id":  e.ID,
		"event":     e.Type,
		"entity_id": e.EntityID,
	}).Info("domain event")
	return nil
}

type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context, projectID, topicID string) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	t := client.Topic(topicID)
	ok, err := t.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !ok {
		if t, err = client.CreateTopic(ctx, topicID); err != nil {
			client.Close()
			return nil, fmt.Errorf("create topic %q: %w", topicID, err)
		}
	}
	return &PubSubPublisher{client: client, topic: t}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": e.Type},
	})
	_, err = res.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// NewPublisher uses Pub/Sub when both project and topic are configured.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, func(), error) {
	if !cfg.PubSubEnabled() {
		return LogPublisher{}, func() {}, nil
	}
	p, err := NewPubSubPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}
