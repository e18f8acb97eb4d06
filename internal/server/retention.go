package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mixchat/internal/config"
	"mixchat/internal/cron"
	"mixchat/internal/storage"
)

// PurgeJobName is the scheduler name of the seen-message retention job.
const PurgeJobName = "purge_seen"

// PurgeJob deletes seen messages older than cfg.MaxAge each time it fires.
func PurgeJob(db *storage.DB, cfg config.RetentionConfig, log zerolog.Logger) cron.Job {
	return cron.Job{
		Name:     PurgeJobName,
		Schedule: cfg.Schedule,
		Timeout:  time.Minute,
		Retry:    cron.DefaultRetryPolicy(),
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-cfg.MaxAge)
			n, err := db.PurgeSeen(ctx, cutoff)
			if err != nil {
				return err
			}
			log.Info().Int64("purged", n).Time("before", cutoff).Msg("Purged seen messages")
			return nil
		},
	}
}

func (s *Server) initScheduler() error {
	s.scheduler = cron.NewScheduler(s.logger.With().Str("component", "cron").Logger(), time.UTC)
	if !s.cfg.Retention.Enabled {
		return nil
	}
	return s.scheduler.Add(PurgeJob(s.db, s.cfg.Retention, s.logger))
}
