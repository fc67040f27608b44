// Package stores implements the core storage interfaces on SQLite.
package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/data/db"
	"github.com/colonyops/formbot/pkg/keylock"
)

const formColumns = "id, title, deadline, channel, added_by, source_ts, status, created_at, description"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FormStore implements form.Store using SQLite.
type FormStore struct {
	db    *db.DB
	locks keylock.Locker
}

var _ form.Store = (*FormStore)(nil)

// NewFormStore creates a new SQLite-backed form store.
func NewFormStore(db *db.DB) *FormStore {
	return &FormStore{db: db}
}

// Create inserts a new form, filling in the ID, status and creation time when
// unset.
func (s *FormStore) Create(ctx context.Context, f *form.Form) error {
	return form.Insert(f, func(f *form.Form) error {
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO forms ("+formColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				f.ID, f.Title, f.Deadline.String(), f.Channel, f.AddedBy, f.SourceTS, string(f.Status), f.CreatedAt.UnixNano(), f.Description,
			)
			if err != nil {
				if IsUniqueConstraintError(err) {
					return fmt.Errorf("create form %s: %w", f.ID, form.ErrDuplicateID)
				}
				return err
			}
			return writeReminders(ctx, tx, f.ID, f.Reminders)
		})
		if err != nil {
			return fmt.Errorf("failed to create form: %w", err)
		}
		return nil
	})
}

// Get returns a form by ID. Returns form.ErrNotFound if not found.
func (s *FormStore) Get(ctx context.Context, id string) (form.Form, error) {
	f, err := getForm(ctx, s.db.Conn(), id)
	if err != nil {
		return form.Form{}, err
	}
	return f, nil
}

// List returns all forms in insertion order.
func (s *FormStore) List(ctx context.Context) ([]form.Form, error) {
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT "+formColumns+" FROM forms ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		forms []form.Form
		index = make(map[string]int)
	)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to convert form: %w", err)
		}
		index[f.ID] = len(forms)
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	if len(forms) == 0 {
		return []form.Form{}, nil
	}

	reminders, err := s.db.Conn().QueryContext(ctx, "SELECT form_id, kind, sent_on FROM form_reminders ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer func() { _ = reminders.Close() }()

	for reminders.Next() {
		formID, r, err := scanReminder(reminders)
		if err != nil {
			return nil, err
		}
		if i, ok := index[formID]; ok {
			forms[i].Reminders = append(forms[i].Reminders, r)
		}
	}

	return forms, reminders.Err()
}

// Update applies fn to the stored form and commits the result. Concurrent
// updates to the same form are serialized.
func (s *FormStore) Update(ctx context.Context, id string, fn form.Mutator) (form.Form, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var updated form.Form
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		f, err := getForm(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := fn(&f); err != nil {
			return err
		}
		f.ID = id

		if err := f.Validate(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE forms SET title = ?, deadline = ?, channel = ?, added_by = ?, source_ts = ?, status = ?, description = ? WHERE id = ?",
			f.Title, f.Deadline.String(), f.Channel, f.AddedBy, f.SourceTS, string(f.Status), f.Description, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update form: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM form_reminders WHERE form_id = ?", id); err != nil {
			return fmt.Errorf("failed to reset reminders: %w", err)
		}
		if err := writeReminders(ctx, tx, id, f.Reminders); err != nil {
			return err
		}

		updated = f
		return nil
	})
	if err != nil {
		return form.Form{}, err
	}

	return updated, nil
}

// Remove deletes a form and its reminder history. Removing an unknown ID is
// not an error.
func (s *FormStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM forms WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove form: %w", err)
	}
	return nil
}

// RegisterChannel adds channel to the registry if it is not already there.
func (s *FormStore) RegisterChannel(ctx context.Context, channel string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		"INSERT OR IGNORE INTO channels (id, registered_at) VALUES (?, ?)",
		channel, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to register channel: %w", err)
	}
	return nil
}

// ListChannels returns registered channels in registration order.
func (s *FormStore) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT id FROM channels ORDER BY registered_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	channels := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

func getForm(ctx context.Context, q querier, id string) (form.Form, error) {
	row := q.QueryRowContext(ctx, "SELECT "+formColumns+" FROM forms WHERE id = ?", id)
	f, err := scanForm(row)
	if IsNotFoundError(err) {
		return form.Form{}, form.ErrNotFound
	}
	if err != nil {
		return form.Form{}, fmt.Errorf("failed to get form: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT form_id, kind, sent_on FROM form_reminders WHERE form_id = ? ORDER BY rowid", id)
	if err != nil {
		return form.Form{}, fmt.Errorf("failed to get reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		_, r, err := scanReminder(rows)
		if err != nil {
			return form.Form{}, err
		}
		f.Reminders = append(f.Reminders, r)
	}

	return f, rows.Err()
}

func writeReminders(ctx context.Context, tx *sql.Tx, id string, reminders []form.SentReminder) error {
	for _, r := range reminders {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO form_reminders (form_id, kind, sent_on) VALUES (?, ?, ?)",
			id, string(r.Kind), r.On.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to record reminder %s: %w", r.Kind, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(sc scanner) (form.Form, error) {
	var (
		f         form.Form
		deadline  string
		status    string
		createdAt int64
	)
	if err := sc.Scan(&f.ID, &f.Title, &deadline, &f.Channel, &f.AddedBy, &f.SourceTS, &status, &createdAt, &f.Description); err != nil {
		return form.Form{}, err
	}

	d, err := form.ParseDate(deadline)
	if err != nil {
		return form.Form{}, fmt.Errorf("form %s: %w", f.ID, err)
	}
	f.Deadline = d
	f.Status = form.Status(status)
	f.CreatedAt = time.Unix(0, createdAt)
	return f, nil
}

func scanReminder(sc scanner) (string, form.SentReminder, error) {
	var (
		formID, kind, sentOn string
		r                    form.SentReminder
	)
	if err := sc.Scan(&formID, &kind, &sentOn); err != nil {
		return "", r, fmt.Errorf("failed to scan reminder: %w", err)
	}
	r.Kind = form.ReminderKind(kind)
	if err := r.On.UnmarshalText([]byte(sentOn)); err != nil {
		return "", r, fmt.Errorf("reminder %s/%s: %w", formID, kind, err)
	}
	return formID, r, nil
}
