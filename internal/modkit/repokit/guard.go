package repokit

import (
	"context"
	"fmt"
	"time"
)

// Guarder checks every configured backend answers
type Guarder interface {
	Guard(context.Context) error
}

// WaitReady retries g.Guard until it succeeds or wait elapses
// the pause between attempts doubles from 100ms up to 2s
func WaitReady(ctx context.Context, g Guarder, wait time.Duration) error {
	if g == nil {
		return fmt.Errorf("repokit: nil dependency")
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	pause := 100 * time.Millisecond
	for {
		err := g.Guard(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("dependencies not ready after %s: %w", wait, err)
		case <-time.After(pause):
		}
		pause = min(2*pause, 2*time.Second)
	}
}
