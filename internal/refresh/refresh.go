// Package refresh keeps the current event snapshot up to date by reloading
// all configured sources on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"yearcal/internal/config"
	"yearcal/internal/gcal"
	"yearcal/internal/ics"
	appLog "yearcal/internal/log"
	"yearcal/internal/model"
	"yearcal/internal/source"
)

// Loader produces the full event list.
type Loader interface {
	Load(ctx context.Context) ([]model.CalendarEvent, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]model.CalendarEvent, error)

func (f LoaderFunc) Load(ctx context.Context) ([]model.CalendarEvent, error) { return f(ctx) }

// Snapshot is an immutable view of the last successful load.
type Snapshot struct {
	// Generation increases with every load; caches key on it.
	Generation uint64
	Events     []model.CalendarEvent
	LoadedAt   time.Time
	// Err is the partial failure of the load, if any sources failed.
	Err error
}

// Refresher reloads events through a Loader and publishes snapshots.
type Refresher struct {
	loader Loader
	now    func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	// runMu serializes loads so cron and manual refreshes never overlap.
	runMu sync.Mutex

	cron *cron.Cron
}

// New creates a Refresher. Nothing is loaded until Refresh or Start.
func New(loader Loader) *Refresher {
	return &Refresher{loader: loader, now: time.Now}
}

// Snapshot returns the latest snapshot.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Refresh loads events now. A load that returns events together with an
// error (some sources failed) is still published; a load that returns no
// events and an error keeps the previous snapshot.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	start := r.now()
	events, err := r.loader.Load(ctx)
	if err != nil && len(events) == 0 {
		appLog.Error("refresh failed; keeping previous events", err)
		return r.Snapshot(), err
	}
	if err != nil {
		appLog.Warn("refresh completed with errors", "events", len(events), "cause", err.Error())
	}

	r.mu.Lock()
	r.snap = Snapshot{
		Generation: r.snap.Generation + 1,
		Events:     events,
		LoadedAt:   r.now(),
		Err:        err,
	}
	snap := r.snap
	r.mu.Unlock()

	appLog.Info("refresh done", "generation", snap.Generation, "events", len(events), "took", r.now().Sub(start).String())
	return snap, nil
}

// Start schedules Refresh on schedule (standard 5-field cron syntax). It does
// not run an initial load. A schedule started earlier is stopped first. The
// schedule stops when ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("scheduled refresh failed", err, "schedule", schedule)
		}
	}); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", schedule, err)
	}

	r.mu.Lock()
	prev := r.cron
	r.cron = c
	r.mu.Unlock()
	if prev != nil {
		<-prev.Stop().Done()
	}

	c.Start()
	appLog.Info("refresh scheduled", "schedule", schedule)

	go func() {
		<-ctx.Done()
		r.stopCron(c)
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// stopCron stops c, clearing it from r only while it is still the current
// schedule.
func (r *Refresher) stopCron(c *cron.Cron) {
	r.mu.Lock()
	if r.cron == c {
		r.cron = nil
	}
	r.mu.Unlock()
	<-c.Stop().Done()
}

// ConfigLoader loads ICS feeds, Google calendars and event files named by
// cfg. Recurrences are expanded from the start of the year before the
// display year through the end of the year after it, so neighbouring years
// can be browsed from the same snapshot.
func ConfigLoader(cfg *config.Config, loc *time.Location, fetcher *ics.Fetcher, now func() time.Time) Loader {
	if now == nil {
		now = time.Now
	}
	return LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) {
		year := cfg.EffectiveYear(now(), loc)
		from := time.Date(year-1, time.January, 1, 0, 0, 0, 0, loc)
		to := time.Date(year+1, time.December, 31, 23, 59, 59, 0, loc)

		sources := make([]ics.Source, 0, len(cfg.ICS))
		for _, c := range cfg.ICS {
			if c.URL == "" {
				continue
			}
			sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL, Color: c.Color})
		}

		var errs []error
		events, err := ics.LoadEvents(ctx, fetcher, sources, loc, from, to)
		if err != nil {
			errs = append(errs, err)
		}
		if len(cfg.Google) > 0 {
			googleEvents, err := gcal.LoadEvents(ctx, cfg.Google, loc, from, to)
			if err != nil {
				errs = append(errs, err)
			}
			events = append(events, googleEvents...)
		}
		fileEvents, err := source.LoadFiles(cfg.EventFiles, loc)
		if err != nil {
			errs = append(errs, err)
		}
		return append(events, fileEvents...), errors.Join(errs...)
	})
}
