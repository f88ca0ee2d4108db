package relay

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
)

// Collections the relay holds game data in.
var Collections = []string{"games", "playerData"}

// Scheduler purges documents nobody wrote to within the retention window.
type Scheduler struct {
	cron      *cron.Cron
	hub       *docstore.Hub
	retention time.Duration
	logger    *log.Logger
}

func NewScheduler(hub *docstore.Hub, retention time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		hub:       hub,
		retention: retention,
		logger:    logger.WithPrefix("scheduler"),
	}
}

// Start registers the cleanup job on spec (standard five-field cron).
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Cleanup(context.Background()); err != nil {
			s.logger.Error("cleanup failed", "err", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("started", "schedule", spec, "retention", s.retention)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("stopped")
}

// Cleanup runs one retention pass and returns the number of purged documents.
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.retention)
	var total int64
	for _, c := range Collections {
		n, err := s.hub.Purge(ctx, c, before)
		if err != nil {
			return total, err
		}
		total += n
	}
	s.logger.Info("cleanup", "purged", total, "before", before.Format(time.RFC3339))
	return total, nil
}
