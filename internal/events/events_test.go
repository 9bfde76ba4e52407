package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"vienna-backend/internal/config"

	"github.com/sirupsen/logrus"
)

type failing struct{ calls int }

func (f *failing) Publish(ctx context.Context, e Event) error {
	f.calls++
	return errors.New("topic unavailable")
}

func TestEmitSwallowsErrors(t *testing.T) {
	f := &failing{}
	Emit(context.Background(), f, New(SaleCreated, "s1", nil))
	Emit(context.Background(), nil, New(SaleCreated, "s2", nil))
	if f.calls != 1 {
		t.Fatalf("calls = %d", f.calls)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	e := New(OrderCreated, "o1", map[string]int{"lines": 2})
	if err := (LogPublisher{Logger: l}).Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if line["event"] != OrderCreated || line["entity_id"] != "o1" || line["event_id"] != e.ID {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestNewPublisherDefaultsToLog(t *testing.T) {
	p, closeFn, err := NewPublisher(context.Background(), &config.Config{PubSubProjectID: "proj"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := p.(LogPublisher); !ok {
		t.Fatalf("expected LogPublisher, got %T", p)
	}
}
