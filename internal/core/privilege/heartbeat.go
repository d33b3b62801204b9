package privilege

import (
	"context"
	"sync"
	"time"
)

// Heartbeat keeps the sudo credential cache warm while a long batch runs.
type Heartbeat struct {
	runner   *Runner
	interval time.Duration

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// StartHeartbeat refreshes the credential every interval until Stop is
// called or ctx is cancelled. Refresh failures are logged; the next step
// that needs sudo surfaces the real error.
func (r *Runner) StartHeartbeat(ctx context.Context, interval time.Duration) *Heartbeat {
	ctx, cancel := context.WithCancel(ctx)
	hb := &Heartbeat{
		runner:   r,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go hb.loop(ctx)
	return hb
}

func (hb *Heartbeat) loop(ctx context.Context) {
	defer close(hb.done)

	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := hb.runner.Validate(ctx, false); err != nil && ctx.Err() == nil {
				hb.runner.log.Warn().Err(err).Msg("sudo keepalive failed")
			}
		}
	}
}

// Stop ends the heartbeat and waits for it to exit. Safe to call more than
// once.
func (hb *Heartbeat) Stop() {
	hb.once.Do(func() {
		hb.cancel()
		<-hb.done
	})
}
