package pipeline

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/pkg/models"
)

// Scheduler runs incremental updates on a cron schedule
type Scheduler struct {
	Spec     string
	Update   func(ctx context.Context) (*models.RunReport, error)
	OnReport func(report *models.RunReport, err error)
	Logger   *logrus.Logger
}

// NewScheduler creates a scheduler running the pipeline's update on spec
func NewScheduler(spec string, p *Pipeline, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Spec:   spec,
		Update: p.Update,
		Logger: logger,
	}
}

// Run blocks until ctx is cancelled. A run still in progress when the next
// one is due causes that next run to be skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.Logger))))

	_, err := c.AddFunc(s.Spec, func() {
		report, err := s.Update(ctx)
		if err != nil {
			s.Logger.Errorf("Scheduled update failed: %v", err)
		}
		if s.OnReport != nil {
			s.OnReport(report, err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.Spec, err)
	}

	c.Start()
	s.Logger.Infof("Scheduler started with schedule %q", s.Spec)

	<-ctx.Done()
	s.Logger.Info("Stopping scheduler, waiting for a running update to finish")
	<-c.Stop().Done()
	return nil
}
