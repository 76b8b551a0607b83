package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	OrderCreated   = "order.created"
	OrderCompleted = "order.completed"
	OrderCancelled = "order.cancelled"
	StockUpdated   = "stock.updated"
)

// Actor is the user that triggered an event
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Event is what gets pushed to dashboards and the message broker. Type
// doubles as the routing key.
type Event struct {
	Type       string      `json:"type"`
	Action     string      `json:"action,omitempty"`
	Data       interface{} `json:"data"`
	User       *Actor      `json:"user,omitempty"`
	Message    string      `json:"message,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher is only ever called after a transaction has committed
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout sends each event to every publisher and joins their errors
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// DefaultPublishTimeout bounds a single Emit when the caller has no timeout of its own
const DefaultPublishTimeout = 2 * time.Second

// Emit publishes and logs failures. Event delivery never changes the
// outcome of the operation that produced it.
func Emit(ctx context.Context, p Publisher, evt Event) {
	EmitWithin(ctx, DefaultPublishTimeout, p, evt)
}

// EmitWithin is Emit with its own deadline. The caller's cancellation is
// ignored since the change being announced has already committed. A
// publisher that does not honour ctx is abandoned once the deadline passes.
func EmitWithin(ctx context.Context, timeout time.Duration, p Publisher, evt Event) {
	if p == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Publish(pctx, evt) }()

	select {
	case err := <-done:
		if err != nil {
			log.Warnf("publish %s event: %v", evt.Type, err)
		}
	case <-pctx.Done():
		log.Warnf("publish %s event: %v", evt.Type, pctx.Err())
	}
}
