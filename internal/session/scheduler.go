package session

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// renewalScheduler runs tick at a fixed interval until tick returns false
// or stop is called.
type renewalScheduler struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startRenewalScheduler(clk clock.WithTicker, interval time.Duration, tick func(ctx context.Context, s *renewalScheduler) bool) *renewalScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &renewalScheduler{cancel: cancel, done: make(chan struct{})}

	ticker := clk.NewTicker(interval)
	go func() {
		defer close(s.done)
		defer cancel()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if !tick(ctx, s) {
					return
				}
			}
		}
	}()
	return s
}

// stop cancels the loop and waits for it to exit. It must not be called
// from inside tick. Stopping a nil scheduler is a no-op.
func (s *renewalScheduler) stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}
