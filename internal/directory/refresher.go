package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Store persists the last good snapshot so a restart can serve it while
// the source is unreachable.
type Store interface {
	SaveHandles(ctx context.Context, handles map[string]string) error
	LoadHandles(ctx context.Context) (map[string]string, time.Time, error)
}

// Refresher reloads a Directory from its Source, on demand and on a cron
// schedule.
type Refresher struct {
	dir    *Directory
	source Source
	store  Store // optional

	cron *cron.Cron

	mu          sync.Mutex
	entryID     cron.EntryID
	lastRefresh time.Time
	lastErr     error
}

// NewRefresher wires dir to source. store may be nil.
func NewRefresher(dir *Directory, source Source, store Store) *Refresher {
	return &Refresher{
		dir:    dir,
		source: source,
		store:  store,
		cron:   cron.New(),
	}
}

// Refresh loads the source and swaps the directory. On failure the current
// snapshot is kept.
func (r *Refresher) Refresh(ctx context.Context) error {
	handles, err := r.source.Load(ctx)

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.lastRefresh = time.Now().UTC()
	}
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("refreshing directory from %s: %w", r.source.Name(), err)
	}
	r.dir.Replace(handles)
	slog.Info("directory: refreshed", "source", r.source.Name(), "entries", r.dir.Len())

	if r.store != nil {
		if err := r.store.SaveHandles(ctx, handles); err != nil {
			slog.Warn("directory: saving snapshot failed", "error", err)
		}
	}
	return nil
}

// Warm performs the first refresh. When the source fails it falls back to the
// stored snapshot; an error is returned only if neither is available.
func (r *Refresher) Warm(ctx context.Context) error {
	err := r.Refresh(ctx)
	if err == nil {
		return nil
	}
	if r.store == nil {
		return err
	}
	handles, savedAt, loadErr := r.store.LoadHandles(ctx)
	if loadErr != nil {
		return fmt.Errorf("%w (stored snapshot: %v)", err, loadErr)
	}
	r.dir.Replace(handles)
	slog.Warn("directory: serving stored snapshot",
		"entries", r.dir.Len(), "saved_at", savedAt.Format(time.RFC3339), "error", err)
	return nil
}

// Start registers the refresh schedule and starts the cron runner. An empty
// schedule disables periodic refresh.
func (r *Refresher) Start(schedule string) error {
	if schedule == "" {
		return nil
	}
	id, err := r.cron.AddFunc(schedule, func() {
		if err := r.Refresh(context.Background()); err != nil {
			slog.Warn("directory: scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	r.mu.Lock()
	r.entryID = id
	r.mu.Unlock()

	r.cron.Start()
	slog.Info("directory: refresh scheduled", "schedule", schedule)
	return nil
}

// Stop halts the cron runner and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// Status reports when the directory was last refreshed and the last error.
func (r *Refresher) Status() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRefresh, r.lastErr
}

// Next returns the next scheduled refresh, zero when none is scheduled.
func (r *Refresher) Next() time.Time {
	r.mu.Lock()
	id := r.entryID
	r.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return r.cron.Entry(id).Next
}

// ValidateSchedule checks that expr is parseable by robfig/cron.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := cron.ParseStandard(expr)
	return err
}
