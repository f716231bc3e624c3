package main

import (
	"context"
	"time"
)

type sweeper interface {
	Sweep() int
}

// pruneEvery drops resolved payments older than the retention window and
// expired rate limiter windows until ctx is done.
func (app *application) pruneEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if n := app.watcher.Prune(app.config.poll.retention); n > 0 {
				app.logger.Infow("pruned resolved payments", "count", n)
			}
			if s, ok := app.rateLimiter.(sweeper); ok {
				s.Sweep()
			}
		}
	}()
}
