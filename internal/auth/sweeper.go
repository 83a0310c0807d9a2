package auth

import (
	"context"
	"time"

	"sigacad.org/internal/obs"
)

const defaultSweepInterval = time.Hour

// Sweeper periodically removes expired entries from the revocation ledger.
// Cadence carries no correctness weight: an expired token fails verification
// regardless of ledger state.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper constructs a Sweeper; a non-positive interval falls back to the
// hourly default.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.svc.SweepExpired(ctx)
			if err != nil {
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "revocation sweep failed",
					"error": err.Error(),
				})
				continue
			}
			obs.ObserveSweep(removed)
			if removed > 0 {
				obs.LogRequest(map[string]any{
					"level":   "info",
					"msg":     "revocation sweep",
					"removed": removed,
				})
			}
		}
	}
}
