// Package jsonfile implements the core storage interfaces on a single JSON
// document, for deployments that do not want a SQLite database.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/notify"
)

// Document is the root JSON structure stored on disk.
type Document struct {
	Forms          []form.Form       `json:"forms"`
	Channels       []string          `json:"channels"`
	Deliveries     []notify.Delivery `json:"deliveries,omitempty"`
	NextDeliveryID int64             `json:"next_delivery_id,omitempty"`
}

// File guards one document on disk. Every operation reads the file, so edits
// made while the process is stopped are picked up on the next call.
type File struct {
	path string
	mu   sync.RWMutex
}

// Open returns a File at path. The file is created on first write.
func Open(path string) *File {
	return &File{path: path}
}

// Path returns the location of the document.
func (f *File) Path() string {
	return f.path
}

func (f *File) read(fn func(doc *Document) error) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	return fn(&doc)
}

// write loads the document, applies fn and saves it. Nothing is written when
// fn fails.
func (f *File) write(fn func(doc *Document) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return f.save(doc)
}

// load reads the document from disk.
// Returns an empty Document if the file doesn't exist.
func (f *File) load() (Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return Document{}, err
	}

	if len(data) == 0 {
		return Document{}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", f.path, err)
	}

	return doc, nil
}

// save writes the document to disk atomically.
func (f *File) save(doc Document) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	if doc.Forms == nil {
		doc.Forms = []form.Form{}
	}
	if doc.Channels == nil {
		doc.Channels = []string{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, f.path)
}

// IsCorrupt reports whether err comes from a document that is not valid JSON.
func IsCorrupt(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// Recover moves an unreadable document aside so the next call starts empty.
// The returned path is the backup, empty when there was no file.
func (f *File) Recover() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return "", nil
	}

	backup := fmt.Sprintf("%s.corrupt.%s", f.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(f.path, backup); err != nil {
		return "", fmt.Errorf("backup corrupted document: %w", err)
	}
	return backup, nil
}
