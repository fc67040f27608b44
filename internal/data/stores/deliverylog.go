package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/notify"
	"github.com/colonyops/formbot/internal/data/db"
)

// DeliveryLog implements notify.Log using SQLite.
type DeliveryLog struct {
	db *db.DB
}

var _ notify.Log = (*DeliveryLog)(nil)

// NewDeliveryLog creates a new SQLite-backed delivery log.
func NewDeliveryLog(db *db.DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

// Record persists a delivery attempt and returns its auto-generated ID.
func (s *DeliveryLog) Record(ctx context.Context, d notify.Delivery) (int64, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	res, err := s.db.Conn().ExecContext(ctx,
		"INSERT INTO deliveries (form_id, channel, kind, error, created_at) VALUES (?, ?, ?, ?, ?)",
		d.FormID, d.Channel, string(d.Kind), d.Error, d.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

// List returns all delivery attempts ordered by newest first.
func (s *DeliveryLog) List(ctx context.Context) ([]notify.Delivery, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT id, form_id, channel, kind, error, created_at FROM deliveries ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []notify.Delivery{}
	for rows.Next() {
		var (
			d         notify.Delivery
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.FormID, &d.Channel, &kind, &d.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Kind = form.ReminderKind(kind)
		d.CreatedAt = time.Unix(0, createdAt)
		result = append(result, d)
	}

	return result, rows.Err()
}

// CountFailed returns the number of failed delivery attempts.
func (s *DeliveryLog) CountFailed(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM deliveries WHERE error != ''").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed deliveries: %w", err)
	}
	return count, nil
}
