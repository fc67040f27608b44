// Package keepalive pings the bot's own public URL on an interval.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/colonyops/formbot/internal/core/logging"
)

// Ping requests url once and fails on a non-2xx response.
func Ping(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("keepalive %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// Start pings url every interval until ctx is cancelled. Failures are logged
// and never stop the loop.
func Start(ctx context.Context, client *http.Client, url string, interval time.Duration) {
	log := logging.Component("keepalive")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Ping(ctx, client, url); err != nil {
				log.Warn().Err(err).Msg("keepalive ping failed")
				continue
			}
			log.Debug().Str("url", url).Msg("keepalive ping ok")
		}
	}
}
