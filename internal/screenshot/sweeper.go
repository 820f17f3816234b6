package screenshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/linkstash/internal/repository"
)

const (
	// RetryCeiling is the maximum number of sweeper-driven re-attempts.
	// Records at the ceiling are permanently abandoned: skipped without a
	// further increment, left failed, visible to the user only as a missing
	// thumbnail.
	RetryCeiling = 3

	// SweepBatchSize caps candidates per run to bound execution time.
	SweepBatchSize = 50

	// DefaultSweepInterval is how often the sweeper scans for candidates.
	DefaultSweepInterval = 24 * time.Hour

	// DefaultPace is the delay between consecutive attempts within one run,
	// so a backlog doesn't burst browser launches.
	DefaultPace = time.Second

	// ProcessingStaleAfter is how long a bookmark may sit in processing
	// before the sweeper treats it as crashed mid-attempt and reclaims it.
	ProcessingStaleAfter = time.Hour
)

// Stats summarizes one sweep run.
type Stats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Sweeper periodically recovers bookmarks whose capture previously failed
// (or crashed mid-flight), bounded by the retry budget.
type Sweeper struct {
	bookmarks repository.BookmarkRepository
	attempter Attempter
	logger    *slog.Logger
	interval  time.Duration
	pace      time.Duration
	stopCh    chan struct{}
}

// NewSweeper creates a sweeper. interval <= 0 selects the default 24h;
// the pacing delay is configurable for tests via SetPace.
func NewSweeper(
	bookmarks repository.BookmarkRepository,
	attempter Attempter,
	logger *slog.Logger,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		bookmarks: bookmarks,
		attempter: attempter,
		logger:    logger,
		interval:  interval,
		pace:      DefaultPace,
		stopCh:    make(chan struct{}),
	}
}

// SetPace overrides the per-candidate pacing delay.
func (s *Sweeper) SetPace(d time.Duration) {
	s.pace = d
}

// Start runs one sweep immediately, then one per interval, until Stop or
// context cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("initial screenshot sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("screenshot sweep failed", slog.String("error", err.Error()))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the periodic schedule. A sweep already in progress finishes.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// Sweep scans once for recoverable bookmarks and re-attempts each within
// budget.
//
// A candidate at the retry ceiling is skipped without touching its counter.
// Otherwise the counter is incremented BEFORE the attempt, so a crash
// mid-attempt still consumes budget; the bias is toward eventual
// abandonment, never infinite retry. Per-candidate capture failures are
// counted and carried on past; only an infrastructure error (the store
// itself failing) aborts the run.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats

	cutoff := time.Now().Add(-ProcessingStaleAfter)
	candidates, err := s.bookmarks.ListRetryable(ctx, cutoff, SweepBatchSize)
	if err != nil {
		return stats, fmt.Errorf("screenshot: listing sweep candidates: %w", err)
	}

	attempted := 0
	for _, b := range candidates {
		// A record missing its counter was stored before retries existed;
		// the zero value makes it eligible.
		if b.ScreenshotRetries >= RetryCeiling {
			stats.Skipped++
			continue
		}

		if attempted > 0 && s.pace > 0 {
			select {
			case <-time.After(s.pace):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
		attempted++

		if err := s.bookmarks.IncrementScreenshotRetries(ctx, b.ID); err != nil {
			return stats, fmt.Errorf("screenshot: incrementing retries for %s: %w", b.ID, err)
		}

		res, err := s.attempter.Attempt(ctx, b.ID, b.URL, b.UserID)
		if err != nil {
			return stats, fmt.Errorf("screenshot: sweeping bookmark %s: %w", b.ID, err)
		}
		if res.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	s.logger.Info("screenshot sweep completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
	)

	return stats, nil
}
