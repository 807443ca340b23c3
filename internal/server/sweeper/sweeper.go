// Package sweeper periodically removes expired expiring links and refresh
// tokens.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/logging"
)

// LinkSweeper deletes links that expired at or before now.
type LinkSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenSweeper deletes refresh tokens that expired at or before now.
type TokenSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Result reports one sweep.
type Result struct {
	Links  int64
	Tokens int64
}

type Sweeper struct {
	links    LinkSweeper
	tokens   TokenSweeper
	interval time.Duration
	timeout  time.Duration
	clock    func() time.Time
	logger   logging.Logger
}

// New builds a sweeper. tokens may be nil to sweep links only.
func New(links LinkSweeper, tokens TokenSweeper, interval time.Duration, logger logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Sweeper{
		links:    links,
		tokens:   tokens,
		interval: interval,
		timeout:  30 * time.Second,
		clock:    time.Now,
		logger:   logger.With("module", "sweeper"),
	}
}

// RunOnce performs a single sweep. Finding nothing to delete is not an
// error.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	now := s.clock()
	var res Result

	n, err := s.links.SweepExpired(ctx, now)
	if err != nil {
		return res, err
	}
	res.Links = n

	if s.tokens != nil {
		n, err = s.tokens.DeleteExpired(ctx, now)
		if err != nil {
			return res, err
		}
		res.Tokens = n
	}

	if res.Links > 0 || res.Tokens > 0 {
		s.logger.Info(ctx, "expired rows removed", "links", res.Links, "refresh_tokens", res.Tokens)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("sweeper: interval must be positive")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
			_, err := s.RunOnce(sweepCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "sweep failed", "error", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}
