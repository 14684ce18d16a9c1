package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"alumnihub/api/internal/repository"
)

// Scheduler runs periodic maintenance. Expired refresh-token rows are never
// treated as valid regardless of this job; purging them only keeps the
// linear match scans short.
type Scheduler struct {
	cron   *cron.Cron
	tokens *repository.RefreshTokenRepository
	log    zerolog.Logger
}

func NewScheduler(tokens *repository.RefreshTokenRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		tokens: tokens,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeExpiredTokens); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and returns after running jobs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired refresh tokens failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("purged", purged).Msg("expired refresh tokens removed")
	}
}
