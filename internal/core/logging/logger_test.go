package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	logger := Component("scheduler")
	logger.Info().Ctx(WithTickID(context.Background(), "tick-9")).Msg("tick finished")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if cmp := logEntry["cmp"]; cmp != "scheduler" {
		t.Errorf("Component() cmp = %v, want %q", cmp, "scheduler")
	}

	if tick := logEntry["tick_id"]; tick != "tick-9" {
		t.Errorf("Component() tick_id = %v, want %q", tick, "tick-9")
	}

	if msg := logEntry["message"]; msg != "tick finished" {
		t.Errorf("Component() message = %v, want %q", msg, "tick finished")
	}
}
