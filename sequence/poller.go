package sequence

import (
	"context"
	"time"
)

// Poller keeps the device state fresh between runs.
type Poller struct {
	Engine *Engine

	// Period is the refresh interval, 500ms if zero.
	Period time.Duration
}

// Run polls until ctx is done. A poll is skipped while a run holds the device
// or when the device was refreshed within the last period.
func (p Poller) Run(ctx context.Context) error {
	period := p.Period
	if period == 0 {
		period = 500 * time.Millisecond
	}
	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			last := p.Engine.Device().State().LastUpdate
			if now.Sub(last) < period {
				continue
			}
			p.Engine.Poll()
		}
	}
}
