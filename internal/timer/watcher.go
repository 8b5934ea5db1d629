package timer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Status is what a Watcher re-reads from the store on every tick.
type Status struct {
	StartedAt *int64
	Submitted bool
	Duration  time.Duration
}

// Probe loads the current Status of the watched section.
type Probe func(ctx context.Context) (Status, error)

// Watcher runs a cancelable periodic expiry check for one section. It holds no lock and no
// countdown state; it only reads stored timestamps.
type Watcher struct {
	Interval time.Duration
	Now      Clock
	// OnTick receives every non-expired reading of a running section. Optional.
	OnTick func(Reading)
	// OnExpire is called at most once, when the section has run out of time unsubmitted.
	OnExpire func(ctx context.Context) error
	Log      zerolog.Logger
}

// Run checks immediately, then on every Interval, until the section is submitted, it expires,
// or ctx is cancelled. It returns OnExpire's error, or nil.
func (w *Watcher) Run(ctx context.Context, probe Probe) error {
	now := w.Now
	if now == nil {
		now = SystemClock
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := w.check(ctx, probe, now)
		if done {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context, probe Probe, now Clock) (bool, error) {
	st, err := probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		w.Log.Warn().Err(err).Msg("Timer probe failed")
		return false, nil
	}
	if st.Submitted {
		return true, nil
	}

	r := Read(st.StartedAt, st.Duration, now())
	if !r.Running {
		return false, nil
	}
	if r.Expired() {
		if w.OnExpire == nil {
			return true, nil
		}
		return true, w.OnExpire(ctx)
	}
	if w.OnTick != nil {
		w.OnTick(r)
	}
	return false, nil
}
