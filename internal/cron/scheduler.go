// Package cron runs named maintenance jobs on cron schedules.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job is one named schedule entry.
type Job struct {
	Name string
	// Schedule accepts 5-field, 6-field (with seconds) and @every/@daily forms.
	Schedule string
	// Timeout bounds a single attempt; 0 means DefaultJobTimeout.
	Timeout time.Duration
	Retry   RetryPolicy
	Run     JobFunc
}

// DefaultJobTimeout bounds one attempt when Job.Timeout is unset.
const DefaultJobTimeout = 5 * time.Minute

var (
	// ErrJobExists is returned when a job name is registered twice.
	ErrJobExists = errors.New("job already registered")
	// ErrJobNotFound is returned for an unknown job name.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning is returned by RunNow while the job is still executing.
	ErrJobRunning = errors.New("job is already running")
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler manages scheduled job execution with robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	jobs    map[string]*Job
	logger  zerolog.Logger
	mu      sync.RWMutex
	running bool

	// ctx is cancelled on Stop so retries in backoff give up.
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	// Track currently executing jobs to prevent overlapping executions
	executing sync.Map // job name -> time.Time (start time)
}

// NewScheduler creates a scheduler in the given location (time.Local if nil).
func NewScheduler(logger zerolog.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]*Job),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ValidateSchedule reports whether spec parses.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Add registers job. Jobs may be added before or after Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job name and run func are required")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.Name)
	}

	j := job
	entryID, err := s.cron.AddFunc(strings.TrimSpace(j.Schedule), func() {
		s.execute(&j)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.entries[j.Name] = entryID
	s.jobs[j.Name] = &j
	return nil
}

// Remove unregisters a job. A running execution is not interrupted.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	delete(s.jobs, name)
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("registered_jobs", len(s.entries)).Msg("Scheduler started")
	return nil
}

// Stop stops firing schedules and waits for active executions or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if _, loaded := s.executing.LoadOrStore(name, time.Now()); loaded {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer s.executing.Delete(name)

	s.wg.Add(1)
	defer s.wg.Done()

	return s.runWithRetry(ctx, job)
}

// NextRun returns the next scheduled time of a job.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IsExecuting reports whether the named job is running right now.
func (s *Scheduler) IsExecuting(name string) bool {
	_, ok := s.executing.Load(name)
	return ok
}

// execute is the cron callback. Overlapping runs of one job are skipped.
func (s *Scheduler) execute(job *Job) {
	startTime := time.Now()
	if prev, loaded := s.executing.LoadOrStore(job.Name, startTime); loaded {
		s.logger.Warn().
			Str("job_name", job.Name).
			Time("previous_start", prev.(time.Time)).
			Msg("Skipping overlapping execution, previous run still active")
		return
	}
	defer s.executing.Delete(job.Name)

	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.runWithRetry(s.ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_name", job.Name).Msg("Job execution failed")
		return
	}
	s.logger.Debug().
		Str("job_name", job.Name).
		Dur("elapsed", time.Since(startTime)).
		Msg("Job execution completed")
}

func (s *Scheduler) runWithRetry(ctx context.Context, job *Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	for attempt := 0; ; attempt++ {
		err := s.attempt(ctx, job, timeout)
		if !job.Retry.ShouldRetry(attempt, err) {
			return err
		}

		delay := job.Retry.NextDelay(attempt)
		s.logger.Warn().Err(err).
			Str("job_name", job.Name).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("Job attempt failed, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

func (s *Scheduler) attempt(ctx context.Context, job *Job, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = NonRetryable(fmt.Errorf("job %s panicked: %v", job.Name, r))
		}
	}()
	return job.Run(ctx)
}
