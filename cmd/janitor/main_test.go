package main

import (
	"context"
	"testing"
)

func TestRetentionDays(t *testing.T) {
	tests := map[string]int{
		"":    defaultRetentionDays,
		"7":   7,
		"0":   defaultRetentionDays,
		"-3":  defaultRetentionDays,
		"abc": defaultRetentionDays,
	}
	for in, want := range tests {
		got := retentionDays(func(string) string { return in })
		if got != want {
			t.Errorf("retentionDays(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestHandlerWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	msg, err := handler(context.Background())
	if err != nil || msg != "no DATABASE_URL" {
		t.Fatalf("handler = (%q, %v)", msg, err)
	}
}
