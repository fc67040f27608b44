// Package formtest provides an in-memory form.Store for tests.
package formtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/pkg/keylock"
)

// Store is an in-memory form.Store. FailWrites makes every mutating call
// return the configured error, for exercising persistence failures.
type Store struct {
	mu       sync.RWMutex
	locks    keylock.Locker
	forms    []form.Form
	channels []string

	FailWrites error
}

var _ form.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Create(_ context.Context, f *form.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}

	return form.Insert(f, func(f *form.Form) error {
		if s.index(f.ID) >= 0 {
			return fmt.Errorf("create form %s: %w", f.ID, form.ErrDuplicateID)
		}
		s.forms = append(s.forms, clone(*f))
		return nil
	})
}

func (s *Store) Get(_ context.Context, id string) (form.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return form.Form{}, form.ErrNotFound
	}
	return clone(s.forms[i]), nil
}

func (s *Store) List(_ context.Context) ([]form.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]form.Form, len(s.forms))
	for i, f := range s.forms {
		out[i] = clone(f)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, fn form.Mutator) (form.Form, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	f, err := s.Get(ctx, id)
	if err != nil {
		return form.Form{}, err
	}
	if err := fn(&f); err != nil {
		return form.Form{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return form.Form{}, s.FailWrites
	}
	i := s.index(id)
	if i < 0 {
		return form.Form{}, form.ErrNotFound
	}
	s.forms[i] = clone(f)
	return f, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	if i := s.index(id); i >= 0 {
		s.forms = slices.Delete(s.forms, i, i+1)
	}
	return nil
}

func (s *Store) RegisterChannel(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	if !slices.Contains(s.channels, channel) {
		s.channels = append(s.channels, channel)
	}
	return nil
}

func (s *Store) ListChannels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels), nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.forms, func(f form.Form) bool { return f.ID == id })
}

func clone(f form.Form) form.Form {
	f.Reminders = slices.Clone(f.Reminders)
	return f
}
