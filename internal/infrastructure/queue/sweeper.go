package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api/metrics"
)

const defaultSweepInterval = 15 * time.Minute

// SessionPurger deletes expired sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired sessions so the table does not grow
// with sessions nobody logs out of.
type Sweeper struct {
	purger   SessionPurger
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(purger SessionPurger, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{purger: purger, interval: interval, log: log}
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
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	metrics.SessionsPurgedTotal.Add(float64(n))
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired sessions purged")
	}
}
