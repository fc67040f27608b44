package jsonfile

import (
	"context"
	"fmt"
	"slices"

	"github.com/colonyops/formbot/internal/core/form"
)

// FormStore implements form.Store on a JSON document.
type FormStore struct {
	file *File
}

var _ form.Store = (*FormStore)(nil)

// NewFormStore creates a form store backed by file.
func NewFormStore(file *File) *FormStore {
	return &FormStore{file: file}
}

func (s *FormStore) Create(_ context.Context, f *form.Form) error {
	return form.Insert(f, func(f *form.Form) error {
		return s.file.write(func(doc *Document) error {
			if indexOf(doc.Forms, f.ID) >= 0 {
				return fmt.Errorf("create form %s: %w", f.ID, form.ErrDuplicateID)
			}
			doc.Forms = append(doc.Forms, clone(*f))
			return nil
		})
	})
}

func (s *FormStore) Get(_ context.Context, id string) (form.Form, error) {
	var out form.Form
	err := s.file.read(func(doc *Document) error {
		i := indexOf(doc.Forms, id)
		if i < 0 {
			return form.ErrNotFound
		}
		out = doc.Forms[i]
		return nil
	})
	return out, err
}

func (s *FormStore) List(_ context.Context) ([]form.Form, error) {
	out := []form.Form{}
	err := s.file.read(func(doc *Document) error {
		out = append(out, doc.Forms...)
		return nil
	})
	return out, err
}

// Update holds the file lock for the whole read-modify-write, which serializes
// updates across all forms.
func (s *FormStore) Update(_ context.Context, id string, fn form.Mutator) (form.Form, error) {
	var out form.Form
	err := s.file.write(func(doc *Document) error {
		i := indexOf(doc.Forms, id)
		if i < 0 {
			return form.ErrNotFound
		}

		f := clone(doc.Forms[i])
		if err := fn(&f); err != nil {
			return err
		}
		f.ID = id
		if err := f.Validate(); err != nil {
			return err
		}

		doc.Forms[i] = f
		out = f
		return nil
	})
	if err != nil {
		return form.Form{}, err
	}
	return out, nil
}

func (s *FormStore) Remove(_ context.Context, id string) error {
	return s.file.write(func(doc *Document) error {
		if i := indexOf(doc.Forms, id); i >= 0 {
			doc.Forms = slices.Delete(doc.Forms, i, i+1)
		}
		return nil
	})
}

func (s *FormStore) RegisterChannel(_ context.Context, channel string) error {
	return s.file.write(func(doc *Document) error {
		if !slices.Contains(doc.Channels, channel) {
			doc.Channels = append(doc.Channels, channel)
		}
		return nil
	})
}

func (s *FormStore) ListChannels(_ context.Context) ([]string, error) {
	out := []string{}
	err := s.file.read(func(doc *Document) error {
		out = append(out, doc.Channels...)
		return nil
	})
	return out, err
}

func indexOf(forms []form.Form, id string) int {
	return slices.IndexFunc(forms, func(f form.Form) bool { return f.ID == id })
}

func clone(f form.Form) form.Form {
	f.Reminders = slices.Clone(f.Reminders)
	return f
}
