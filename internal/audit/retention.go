package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// retentionSchedule runs the sweep nightly at 03:00. Standard 5-field cron
// format: minute hour day-of-month month day-of-week.
const retentionSchedule = "0 3 * * *"

// Sweeper purges audit records past their retention period on a cron
// schedule.
type Sweeper struct {
	cron          *cron.Cron
	store         *Store
	retentionDays int
}

// NewSweeper creates a sweeper over the store. retentionDays must be
// positive (validated by config).
func NewSweeper(store *Store, retentionDays int) (*Sweeper, error) {
	s := &Sweeper{
		cron:          cron.New(),
		store:         store,
		retentionDays: retentionDays,
	}

	_, err := s.cron.AddFunc(retentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.SweepOnce(ctx); err != nil {
			log.Error().Err(err).Msg("audit retention sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// SweepOnce purges everything older than the retention window and returns
// the number of records removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("purged", n).Int("retention_days", s.retentionDays).Msg("audit retention sweep")
	}
	return n, nil
}

// Start begins the scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Sweeper) Entries() int {
	return len(s.cron.Entries())
}
