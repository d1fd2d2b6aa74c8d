package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Driver ticks a Pipeline at a fixed delay until the session ends or the
// context is cancelled.
type Driver struct {
	p        *Pipeline
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger

	// FPSEvery, when non-zero, logs the achieved tick rate at that period.
	FPSEvery time.Duration
}

func NewDriver(p *Pipeline) *Driver {
	return &Driver{
		p:        p,
		clock:    p.clock,
		interval: time.Duration(p.cfg.TickInterval),
		log:      p.log,
	}
}

// Run drives the pipeline. Cancelling ctx cancels the pending tick and
// stops the pipeline. Run returns nil when the queue is exhausted.
func (d *Driver) Run(ctx context.Context) error {
	start := d.clock.Now()
	var fr int

	for {
		if err := ctx.Err(); err != nil {
			d.p.Stop()
			return err
		}
		if !d.p.Tick(ctx) {
			return nil
		}

		fr++
		if d.FPSEvery > 0 {
			if since := d.clock.Since(start); since > d.FPSEvery {
				d.log.Info("tick rate", "fps", float64(fr)/since.Seconds(), "state", d.p.State())
				start = d.clock.Now()
				fr = 0
			}
		}

		t := d.clock.Timer(d.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			d.p.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
