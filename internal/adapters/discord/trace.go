package discord

import (
	"log/slog"
	"time"
)

// step mide la duración de un handler; usar con defer.
func step(log *slog.Logger, label string) func() {
	start := time.Now()
	return func() { log.Debug("trace", "step", label, "took", time.Since(start)) }
}
