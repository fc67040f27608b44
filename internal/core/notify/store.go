package notify

import (
	"context"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
)

// Delivery records one reminder dispatch attempt to one channel.
type Delivery struct {
	ID        int64             `json:"id"`
	FormID    string            `json:"form_id"`
	Channel   string            `json:"channel"`
	Kind      form.ReminderKind `json:"kind"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Failed reports whether the attempt errored.
func (d Delivery) Failed() bool {
	return d.Error != ""
}

// Log persists delivery attempts to durable storage.
type Log interface {
	Record(ctx context.Context, d Delivery) (int64, error)
	List(ctx context.Context) ([]Delivery, error)
	CountFailed(ctx context.Context) (int64, error)
}
