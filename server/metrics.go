package main

import (
	"context"
	"log/slog"
	"time"
)

// RunMetrics logs hub subscriber counts every interval until ctx is
// canceled — adapted from the teacher's RunMetrics ticker, generalized
// from per-channel voice/datagram stats to the relay's connected-session
// count and switched to structured slog logging.
func RunMetrics(ctx context.Context, hub *Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.mu.RLock()
			sessions := len(hub.subs)
			hub.mu.RUnlock()
			if sessions > 0 {
				slog.Info("relay stats", "sessions", sessions)
			}
		}
	}
}
