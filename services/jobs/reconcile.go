package jobsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
)

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	svc     completion.Service
	logger  core.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewScheduler(svc completion.Service, logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		svc:     svc,
		logger:  logger,
		timeout: time.Hour,
	}
}

// Start schedules credit reconciliation on spec (standard 5-field cron) and starts the scheduler.
// An empty spec schedules nothing.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		s.logger.Info("credit reconciliation disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.runReconcile); err != nil {
		return errors.Wrapf(err, "scheduling reconciliation %q", spec)
	}
	s.cron.Start()
	s.logger.Info("credit reconciliation scheduled", map[string]interface{}{"schedule": spec})
	return nil
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// runReconcile skips a run while the previous one is still going.
func (s *Scheduler) runReconcile() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("credit reconciliation still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.svc.Reconcile(ctx)
	if err != nil {
		s.logger.Error("reconciling credits", err)
		return
	}
	s.logger.Info("credits reconciled", map[string]interface{}{
		"checked":           report.Checked,
		"updated":           report.Updated,
		"courses_completed": report.CoursesCompleted,
		"took":              time.Since(start).String(),
	})
}
