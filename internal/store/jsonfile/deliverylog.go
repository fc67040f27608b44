package jsonfile

import (
	"context"
	"time"

	"github.com/colonyops/formbot/internal/core/notify"
)

// maxDeliveries caps the history kept in the document.
const maxDeliveries = 500

// DeliveryLog implements notify.Log on a JSON document.
type DeliveryLog struct {
	file *File
}

var _ notify.Log = (*DeliveryLog)(nil)

// NewDeliveryLog creates a delivery log backed by file.
func NewDeliveryLog(file *File) *DeliveryLog {
	return &DeliveryLog{file: file}
}

// Record adds a delivery attempt, pruning the oldest entries past maxDeliveries.
func (l *DeliveryLog) Record(_ context.Context, d notify.Delivery) (int64, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	err := l.file.write(func(doc *Document) error {
		doc.NextDeliveryID++
		d.ID = doc.NextDeliveryID

		// Newest first
		doc.Deliveries = append([]notify.Delivery{d}, doc.Deliveries...)
		if len(doc.Deliveries) > maxDeliveries {
			doc.Deliveries = doc.Deliveries[:maxDeliveries]
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

// List returns delivery attempts, newest first.
func (l *DeliveryLog) List(_ context.Context) ([]notify.Delivery, error) {
	out := []notify.Delivery{}
	err := l.file.read(func(doc *Document) error {
		out = append(out, doc.Deliveries...)
		return nil
	})
	return out, err
}

func (l *DeliveryLog) CountFailed(_ context.Context) (int64, error) {
	var n int64
	err := l.file.read(func(doc *Document) error {
		for _, d := range doc.Deliveries {
			if d.Failed() {
				n++
			}
		}
		return nil
	})
	return n, err
}
