// Package watch turns the append-only changelog into a push signal: it
// polls the table's high-water mark, debounces bursts (a sync pass can
// append dozens of rows in seconds), and runs an invalidation action once
// per burst. Render caches and search indexers hang off this loop.
//
// Typical usage:
//
//	w := watch.New(st, watch.Options{Interval: 2*time.Second, Debounce: 5*time.Second})
//	go w.OnChange(ctx, func() error { return cache.Invalidate() })
package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/regref/regref/store"
)

// ChangeDetector reads a monotonic token from the store. Two calls that
// return different values mean "the changelog grew". int64 maps naturally
// to the changelog's MAX(rowid).
type ChangeDetector func(ctx context.Context, st *store.Store) (int64, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 2s.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// action fires. More changes during the window reset the timer, so a
	// whole sync pass collapses into one invalidation. 0 fires immediately.
	Debounce time.Duration
	// Detector overrides the default ChangelogRowID detector.
	Detector ChangeDetector
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Detector == nil {
		o.Detector = ChangelogRowID
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls the changelog for growth and runs an action when it grows.
// Safe for concurrent use.
type Watcher struct {
	store *store.Store
	opts  Options

	// version is the last processed changelog high-water mark.
	version atomic.Int64

	versionMu   sync.Mutex
	versionCond *sync.Cond

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(st *store.Store, opts Options) *Watcher {
	opts.defaults()
	w := &Watcher{store: st, opts: opts}
	w.versionCond = sync.NewCond(&w.versionMu)
	return w
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last processed changelog high-water mark.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled, polling at opts.Interval. When
// the detector reports growth and the debounce window passes without
// further growth, action is called.
//
// If action returns an error the mark is NOT advanced, so the action is
// retried on the next poll cycle.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	// Seed from the existing changelog so startup does not fire for
	// history already processed.
	v, err := w.opts.Detector(ctx, w.store)
	if err != nil {
		log.Warn("watch: initial changelog check failed", "error", err)
	} else {
		w.setVersion(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pendingVersion := int64(-1)

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.store)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: changelog check failed", "error", err)
				continue
			}
			if cur != w.version.Load() && cur != pendingVersion {
				w.changes.Add(1)
				pendingVersion = cur

				if w.opts.Debounce <= 0 {
					w.fire(log, action, pendingVersion)
					pendingVersion = -1
				} else {
					// Restart the window only when the mark actually moved
					// again, not on every poll cycle.
					if debounceTimer != nil {
						debounceTimer.Stop()
					}
					debounceTimer = time.NewTimer(w.opts.Debounce)
					debounceCh = debounceTimer.C
					log.Debug("watch: changelog grew, debouncing", "pending_mark", cur)
				}
			}

		case <-debounceCh:
			debounceCh = nil
			if pendingVersion >= 0 {
				w.fire(log, action, pendingVersion)
				pendingVersion = -1
			}
		}
	}
}

// WaitForVersion blocks until the watcher has observed and successfully
// processed (action returned nil) a mark >= target, or ctx expires.
func (w *Watcher) WaitForVersion(ctx context.Context, target int64) error {
	if w.version.Load() >= target {
		return nil
	}

	done := ctx.Done()
	w.versionMu.Lock()
	defer w.versionMu.Unlock()

	for w.version.Load() < target {
		// Interruptible wait: a helper goroutine broadcasts on context
		// cancellation so the Wait below can be woken either way.
		ch := make(chan struct{})
		go func() {
			select {
			case <-done:
				w.versionCond.Broadcast()
			case <-ch:
			}
		}()

		w.versionCond.Wait()
		close(ch)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	log.Info("watch: invalidating", "old_mark", w.version.Load(), "new_mark", ver)
	start := time.Now()
	if err := action(); err != nil {
		w.errors.Add(1)
		log.Error("watch: invalidation failed", "error", err, "mark", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.setVersion(ver)
	log.Info("watch: invalidation complete", "mark", ver, "duration", elapsed)
}

func (w *Watcher) setVersion(v int64) {
	w.version.Store(v)
	w.versionCond.Broadcast()
}

// ChangelogRowID is the default detector: the changelog's MAX(rowid).
// Rows are append-only, so the mark is monotonic.
func ChangelogRowID(ctx context.Context, st *store.Store) (int64, error) {
	return st.LatestChangeRowID(ctx)
}
