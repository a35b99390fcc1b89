// Package scheduler runs drift checks between saved profiles on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

// Comparer is the part of *service.Service a watch needs.
type Comparer interface {
	Compare(ctx context.Context, req service.CompareRequest) (*model.DiffResult, error)
	SaveSQLFile(path, content string) error
}

// Watch is one scheduled comparison. When Out is set, the sync script of
// every run that finds drift is written there.
type Watch struct {
	Name     string
	Schedule string
	Request  service.CompareRequest
	Out      string
}

// Label is the watch name, defaulting to "source->target".
func (w Watch) Label() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Request.SourceID + "->" + w.Request.TargetID
}

// Report is the outcome of one watch run.
type Report struct {
	Watch    string
	At       time.Time
	Duration time.Duration
	Items    int
	Err      error
}

// Drifted reports whether the run found differences.
func (r Report) Drifted() bool { return r.Err == nil && r.Items > 0 }

// Scheduler owns a cron runner and the latest report of each watch.
type Scheduler struct {
	cron    *cron.Cron
	svc     Comparer
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	last    map[string]Report

	// OnReport, when set, is called after every run.
	OnReport func(Report)
}

// New creates a scheduler. Runs of the same watch never overlap: a run that
// is still going when the next tick fires causes that tick to be skipped.
func New(svc Comparer, logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		svc:     svc,
		logger:  logger,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
		last:    make(map[string]Report),
	}
}

// Add registers w. Names must be unique and the schedule must parse as a
// standard cron spec or descriptor such as "@every 1h".
func (s *Scheduler) Add(w Watch) error {
	w.Name = w.Label()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[w.Name]; ok {
		return fmt.Errorf("watch %q already scheduled", w.Name)
	}
	id, err := s.cron.AddFunc(w.Schedule, func() { s.RunNow(context.Background(), w) })
	if err != nil {
		return fmt.Errorf("schedule watch %q: %w", w.Name, err)
	}
	s.entries[w.Name] = id
	s.logger.Info("watch scheduled", "watch", w.Name, "schedule", w.Schedule)
	return nil
}

// Start begins running scheduled watches in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Debug("next run", "entry", e.ID, "at", e.Next)
	}
}

// Stop halts the scheduler and returns a context that is done once running
// watches have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow runs w immediately and records its report.
func (s *Scheduler) RunNow(ctx context.Context, w Watch) Report {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	w.Name = w.Label()
	start := time.Now()
	rep := Report{Watch: w.Name, At: start}
	res, err := s.svc.Compare(ctx, w.Request)
	rep.Duration = time.Since(start)

	switch {
	case err != nil:
		rep.Err = err
		s.logger.Error("watch failed", "watch", w.Name, "error", err)
	case len(res.Items) == 0:
		s.logger.Info("no schema drift", "watch", w.Name, "duration", rep.Duration)
	default:
		rep.Items = len(res.Items)
		s.logger.Warn("schema drift detected", "watch", w.Name, "differences", rep.Items,
			"source_tables", res.SourceTables, "target_tables", res.TargetTables)
		if w.Out != "" {
			if err := s.svc.SaveSQLFile(w.Out, res.Script()); err != nil {
				rep.Err = err
				s.logger.Error("failed to write drift script", "watch", w.Name, "path", w.Out, "error", err)
			}
		}
	}

	s.mu.Lock()
	s.last[w.Name] = rep
	s.mu.Unlock()
	if s.OnReport != nil {
		s.OnReport(rep)
	}
	return rep
}

// Last returns the most recent report for the named watch.
func (s *Scheduler) Last(name string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[name]
	return r, ok
}

// Next returns when the named watch runs next. It is zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
