package logging

import (
	"context"
	"testing"
)

func TestWithFormID(t *testing.T) {
	ctx := WithFormID(context.Background(), "ab12cd34")

	if got := GetFormID(ctx); got != "ab12cd34" {
		t.Errorf("GetFormID() = %q, want %q", got, "ab12cd34")
	}
}

func TestWithChannel(t *testing.T) {
	ctx := WithChannel(context.Background(), "C024BE91L")

	if got := GetChannel(ctx); got != "C024BE91L" {
		t.Errorf("GetChannel() = %q, want %q", got, "C024BE91L")
	}
}

func TestWithTickID(t *testing.T) {
	ctx := WithTickID(context.Background(), "tick-1")

	if got := GetTickID(ctx); got != "tick-1" {
		t.Errorf("GetTickID() = %q, want %q", got, "tick-1")
	}
}

func TestGetters_NotPresent(t *testing.T) {
	ctx := context.Background()

	if got := GetFormID(ctx); got != "" {
		t.Errorf("GetFormID() = %q, want empty string", got)
	}
	if got := GetChannel(ctx); got != "" {
		t.Errorf("GetChannel() = %q, want empty string", got)
	}
	if got := GetTickID(ctx); got != "" {
		t.Errorf("GetTickID() = %q, want empty string", got)
	}
}
