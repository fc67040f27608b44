package notifytest

import (
	"context"
	"sync"

	"github.com/colonyops/formbot/internal/core/notify"
)

// Log is an in-memory notify.Log.
type Log struct {
	mu      sync.Mutex
	entries []notify.Delivery
}

var _ notify.Log = (*Log)(nil)

func (l *Log) Record(_ context.Context, d notify.Delivery) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, d)
	return d.ID, nil
}

func (l *Log) List(_ context.Context) ([]notify.Delivery, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notify.Delivery(nil), l.entries...), nil
}

func (l *Log) CountFailed(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for _, d := range l.entries {
		if d.Failed() {
			n++
		}
	}
	return n, nil
}
