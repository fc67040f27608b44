// Package notifytest provides a recording notify.Notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/colonyops/formbot/internal/core/notify"
)

// Sent is a captured Send call.
type Sent struct {
	Channel string
	Text    string
	Thread  string
}

// Marker is a captured AddMarker call.
type Marker struct {
	Channel   string
	MessageTS string
	Marker    string
}

// Recorder captures calls. Channels listed in FailChannels make Send return
// Err (defaulting to ErrSend) for that channel; the call is still recorded.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	markers []Marker

	FailChannels map[string]bool
	Err          error
}

var _ notify.Notifier = (*Recorder)(nil)

// ErrSend is the default failure returned for FailChannels.
var ErrSend = errSend{}

type errSend struct{}

func (errSend) Error() string { return "send failed" }

func (r *Recorder) Send(_ context.Context, channel, text, thread string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, Sent{Channel: channel, Text: text, Thread: thread})
	if r.FailChannels[channel] {
		if r.Err != nil {
			return r.Err
		}
		return ErrSend
	}
	return nil
}

func (r *Recorder) AddMarker(_ context.Context, channel, messageTS, marker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markers = append(r.markers, Marker{Channel: channel, MessageTS: messageTS, Marker: marker})
	return nil
}

// Sent returns a copy of all Send calls so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Markers returns a copy of all AddMarker calls so far.
func (r *Recorder) Markers() []Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Marker(nil), r.markers...)
}

// Reset drops everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.markers = nil
}
