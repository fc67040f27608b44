package form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colonyops/formbot/pkg/randid"
)

// IDLength is the length of generated form ids.
const IDLength = 8

const idAttempts = 5

// NewID generates form ids.
var NewID = func() string { return randid.Generate(IDLength) }

// Mutator edits a form in place inside Store.Update. Returning an error
// aborts the update without committing anything.
type Mutator func(*Form) error

// Store persists forms and the channel registry.
//
// Update is atomic with respect to other Update calls for the same id within
// the process. List returns a full snapshot in insertion order.
type Store interface {
	Create(ctx context.Context, f *Form) error
	Get(ctx context.Context, id string) (Form, error)
	List(ctx context.Context) ([]Form, error)
	Update(ctx context.Context, id string, fn Mutator) (Form, error)
	Remove(ctx context.Context, id string) error

	RegisterChannel(ctx context.Context, channel string) error
	ListChannels(ctx context.Context) ([]string, error)
}

// Insert fills in the status and creation time of a new form, validates it
// and hands it to insert. An explicit ID is tried once. An empty ID is
// generated and regenerated while insert reports ErrDuplicateID.
func Insert(f *Form, insert func(*Form) error) error {
	if f.Status == "" {
		f.Status = StatusActive
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	if err := f.Validate(); err != nil {
		return err
	}

	if f.ID != "" {
		return insert(f)
	}

	var err error
	for range idAttempts {
		f.ID = NewID()
		if err = insert(f); !errors.Is(err, ErrDuplicateID) {
			return err
		}
	}
	return fmt.Errorf("no free form id after %d attempts: %w", idAttempts, err)
}
