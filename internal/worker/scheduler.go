package worker

import (
	"context"
	"log"
	"time"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/services"
	"github.com/robfig/cron/v3"
)

// BankSyncer is the part of the bank sync run on a timer.
type BankSyncer interface {
	Sync(ctx context.Context) (*services.SyncResult, error)
	Reconcile(ctx context.Context) (int, error)
}

// Notifier sends the scheduled tutor messages.
type Notifier interface {
	DailyDigest(ctx context.Context) (int, error)
	PayLaterReminders(ctx context.Context) (int, error)
}

// Jobs are the scheduled operations. Each run gets its own timeout so a
// hung bank call cannot pile up overlapping runs.
type Jobs struct {
	sync     BankSyncer
	notifier Notifier
	timeout  time.Duration
}

func NewJobs(sync BankSyncer, notifier Notifier, timeout time.Duration) *Jobs {
	return &Jobs{sync: sync, notifier: notifier, timeout: timeout}
}

func (j *Jobs) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), j.timeout)
}

func (j *Jobs) SyncBank() {
	ctx, cancel := j.context()
	defer cancel()
	if _, err := j.sync.Sync(ctx); err != nil {
		log.Printf("[WORKER] Bank sync failed: %v", err)
	}
}

func (j *Jobs) Reconcile() {
	ctx, cancel := j.context()
	defer cancel()
	if _, err := j.sync.Reconcile(ctx); err != nil {
		log.Printf("[WORKER] Reconcile failed: %v", err)
	}
}

func (j *Jobs) DailyDigest() {
	ctx, cancel := j.context()
	defer cancel()
	sent, err := j.notifier.DailyDigest(ctx)
	if err != nil {
		log.Printf("[WORKER] Daily digest failed after %d messages: %v", sent, err)
		return
	}
	log.Printf("[WORKER] Daily digest sent to %d tutors", sent)
}

func (j *Jobs) PayLaterReminders() {
	ctx, cancel := j.context()
	defer cancel()
	sent, err := j.notifier.PayLaterReminders(ctx)
	if err != nil {
		log.Printf("[WORKER] Pay-later reminders failed after %d messages: %v", sent, err)
		return
	}
	log.Printf("[WORKER] Sent %d pay-later reminders", sent)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	config config.WorkerConfig
}

func NewScheduler(jobs *Jobs, cfg config.WorkerConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		config: cfg,
	}
}

// Register adds the jobs and returns how many were scheduled. A job with an
// empty or invalid schedule is left out.
func (s *Scheduler) Register() int {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"bank sync", s.config.SyncSchedule, s.jobs.SyncBank},
		{"reconcile", s.config.ReconcileSchedule, s.jobs.Reconcile},
		{"daily digest", s.config.DigestSchedule, s.jobs.DailyDigest},
		{"pay-later reminders", s.config.ReminderSchedule, s.jobs.PayLaterReminders},
	}

	scheduled := 0
	for _, job := range jobs {
		if job.schedule == "" {
			log.Printf("[WORKER] %s job disabled", job.name)
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			log.Printf("[WORKER] Failed to schedule %s job %q: %v", job.name, job.schedule, err)
			continue
		}
		log.Printf("[WORKER] Scheduled %s job: %s", job.name, job.schedule)
		scheduled++
	}
	return scheduled
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling; the returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
