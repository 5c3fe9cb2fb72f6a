package watch

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/regref/regref/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.ApplySchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return st
}

// appendChange inserts one changelog row, growing the high-water mark.
func appendChange(t *testing.T, st *store.Store, n int) {
	t.Helper()
	err := st.InsertChangelog(context.Background(), &store.ChangelogEntry{
		ID:          fmt.Sprintf("c-%d", n),
		SectionID:   "390.5",
		Part:        "390",
		VersionDate: "2024-01-01",
		ChangeType:  "editorial",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestChangelogRowID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	v, err := ChangelogRowID(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("expected 0 for empty changelog, got %d", v)
	}

	appendChange(t, st, 1)
	appendChange(t, st, 2)
	v, err = ChangelogRowID(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("expected mark 2 after two appends, got %d", v)
	}
}

func TestOnChange_FiresOnAppend(t *testing.T) {
	st := testStore(t)

	var reloadCount atomic.Int32
	w := New(st, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		reloadCount.Add(1)
		return nil
	})

	// Wait for the initial mark to be read.
	time.Sleep(50 * time.Millisecond)

	appendChange(t, st, 1)
	time.Sleep(80 * time.Millisecond)

	if got := reloadCount.Load(); got != 1 {
		t.Fatalf("expected 1 invalidation, got %d", got)
	}

	appendChange(t, st, 2)
	time.Sleep(80 * time.Millisecond)

	if got := reloadCount.Load(); got != 2 {
		t.Fatalf("expected 2 invalidations, got %d", got)
	}

	// No append → no extra fire.
	time.Sleep(80 * time.Millisecond)
	if got := reloadCount.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
}

func TestOnChange_DebounceCollapsesBurst(t *testing.T) {
	st := testStore(t)

	var reloadCount atomic.Int32
	w := New(st, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		reloadCount.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	// A sync pass appends several rows in quick succession.
	for i := 1; i <= 5; i++ {
		appendChange(t, st, i)
		time.Sleep(15 * time.Millisecond)
	}

	// Window still open — nothing fired yet.
	if got := reloadCount.Load(); got != 0 {
		t.Fatalf("expected 0 invalidations during debounce, got %d", got)
	}

	time.Sleep(200 * time.Millisecond)

	if got := reloadCount.Load(); got != 1 {
		t.Fatalf("expected 1 invalidation for the whole burst, got %d", got)
	}
}

func TestOnChange_ErrorDoesNotAdvanceMark(t *testing.T) {
	st := testStore(t)

	var callCount atomic.Int32
	w := New(st, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		n := callCount.Add(1)
		if n == 1 {
			return context.DeadlineExceeded // simulate failure
		}
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	appendChange(t, st, 1)

	// First attempt fails; the next poll retries and succeeds.
	time.Sleep(120 * time.Millisecond)

	if got := callCount.Load(); got < 2 {
		t.Fatalf("expected at least 2 calls (1 fail + 1 success), got %d", got)
	}
	if v := w.Version(); v != 1 {
		t.Fatalf("expected mark 1 after retry, got %d", v)
	}
}

func TestWaitForVersion(t *testing.T) {
	st := testStore(t)

	w := New(st, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go w.OnChange(ctx, func() error { return nil })

	time.Sleep(50 * time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		for i := 1; i <= 3; i++ {
			appendChange(t, st, i)
		}
	}()

	if err := w.WaitForVersion(ctx, 3); err != nil {
		t.Fatalf("WaitForVersion: %v", err)
	}
	if v := w.Version(); v < 3 {
		t.Fatalf("expected mark >= 3, got %d", v)
	}
}

func TestWaitForVersion_Timeout(t *testing.T) {
	st := testStore(t)

	w := New(st, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error { return nil })

	time.Sleep(50 * time.Millisecond)

	// Mark 99 never arrives.
	waitCtx, waitCancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer waitCancel()

	if err := w.WaitForVersion(waitCtx, 99); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStats(t *testing.T) {
	st := testStore(t)

	w := New(st, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error { return nil })
	time.Sleep(50 * time.Millisecond)

	appendChange(t, st, 1)
	time.Sleep(80 * time.Millisecond)

	s := w.Stats()
	if s.Checks == 0 {
		t.Fatal("expected checks > 0")
	}
	if s.ChangesDetected == 0 {
		t.Fatal("expected changes > 0")
	}
	if s.Reloads == 0 {
		t.Fatal("expected reloads > 0")
	}
}
