package reload

import (
	"context"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/common/validation"
)

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}

// Scheduler runs named jobs on cron schedules. A job that is still running
// when its next tick fires is skipped, and a panicking job is logged.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	jobs   map[string]cron.EntryID
}

func NewScheduler(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "component", Value: "scheduler"})
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(validation.CronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add schedules fn under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	if spec == "" {
		s.logger.Info("Scheduled job disabled", logging.Field{Key: "job", Value: name})
		return nil
	}
	if _, exists := s.jobs[name]; exists {
		return errors.ValidationError("job " + name + " is already scheduled")
	}

	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid schedule %q for job %s: %v", spec, name, err))
	}
	s.jobs[name] = id
	s.logger.Info("Scheduled job added",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "schedule", Value: spec},
	)
	return nil
}

// Jobs returns the scheduled job names in sorted order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
