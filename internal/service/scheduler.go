package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payreminder/internal/constants"

	"github.com/sirupsen/logrus"
)

// JobFunc is the work a scheduled job performs.
type JobFunc func(ctx context.Context) error

// Job fires once per month on a fixed day at a fixed local time.
type Job struct {
	Name       string
	DayOfMonth int
	Hour       int
	Minute     int
	Run        JobFunc

	nextRun time.Time
}

// Scheduler fires monthly jobs at their configured day and time. A run that
// was missed while the process was down is skipped, not replayed: on start
// every job's next run is computed strictly in the future.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*Job
	logger *logrus.Logger
	now    func() time.Time
	stopCh chan struct{}
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := job
	s.jobs = append(s.jobs, &j)
}

// Start blocks, firing due jobs, until the context is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	for _, job := range s.jobs {
		job.nextRun = nextMonthlyRun(now, job.DayOfMonth, job.Hour, job.Minute)
		s.logger.WithFields(logrus.Fields{
			"job":      job.Name,
			"next_run": job.nextRun.Format(time.RFC3339),
		}).Info("Job scheduled")
	}
	s.mu.Unlock()

	ticker := time.NewTicker(time.Duration(constants.SchedulerTickSec) * time.Second)
	defer ticker.Stop()

	s.logger.Info("Starting reminder scheduler")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runDueJobs(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// RunOnce triggers a job by name immediately, outside its schedule.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *Job
	for _, j := range s.jobs {
		if j.Name == name {
			job = j
			break
		}
	}
	s.mu.Unlock()

	if job == nil {
		return fmt.Errorf("unknown job: %s", name)
	}

	s.logger.WithField("job", name).Info("Running job on demand")
	return job.Run(ctx)
}

// JobNames lists the registered jobs for the admin surface.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.Name)
	}
	return names
}

func (s *Scheduler) runDueJobs(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if !job.nextRun.After(now) {
			due = append(due, job)
			job.nextRun = nextMonthlyRun(now, job.DayOfMonth, job.Hour, job.Minute)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		logger := s.logger.WithField("job", job.Name)
		logger.Info("Running scheduled job")

		if err := job.Run(ctx); err != nil {
			logger.WithError(err).Error("Scheduled job failed")
		} else {
			logger.WithField("next_run", job.nextRun.Format(time.RFC3339)).Info("Scheduled job complete")
		}
	}
}

// nextMonthlyRun returns the first occurrence of day/hour/minute strictly
// after now. Months too short for the requested day are skipped.
func nextMonthlyRun(now time.Time, day, hour, minute int) time.Time {
	// Anchor on the first of the month so a day that normalizes into the
	// next month (e.g. the 30th in February) cannot drift the walk.
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < 48; i++ {
		candidate := time.Date(anchor.Year(), anchor.Month(), day, hour, minute, 0, 0, now.Location())
		if candidate.Day() == day && candidate.After(now) {
			return candidate
		}
		anchor = anchor.AddDate(0, 1, 0)
	}
	return time.Time{}
}
