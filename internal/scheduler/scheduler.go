package scheduler

import (
	"github.com/robfig/cron/v3"

	"ms-booking/internal/logger"
)

// Scheduler drives the periodic sweeps. Cadences follow the lifecycle:
// reminders a few times a day, the deadline check hourly, retention daily.
type Scheduler struct {
	cron   *cron.Cron
	sweeps *Sweeps
	logger *logger.Logger
}

func New(sweeps *Sweeps, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		sweeps: sweeps,
		logger: log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 6h", s.sweeps.RunReminderSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.sweeps.RunAutoCancelSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 24h", s.sweeps.RunRetentionSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("SCHEDULER", "Sweeps scheduled: reminders every 6h, deadline check every 1h, retention every 24h")
	return nil
}

// Stop waits for a running sweep to finish before returning.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("SCHEDULER", "Sweeps stopped")
}
