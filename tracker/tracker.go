// Package tracker coordinates version sync: it compares cached per-section
// version dates against the provider's authoritative version list, decides
// what to re-fetch, detects content changes, records them in the changelog,
// and flags affected annotations.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regref/regref/ecfr"
	"github.com/regref/regref/regml"
	"github.com/regref/regref/store"
)

// ErrSyncInProgress is returned when a sync pass for the same part is
// already running.
var ErrSyncInProgress = errors.New("tracker: sync already in progress for part")

// Provider is the upstream surface the tracker consumes. *ecfr.Client
// satisfies it.
type Provider interface {
	Structure(ctx context.Context, part string) (*ecfr.StructureNode, error)
	SectionXML(ctx context.Context, date, part, section string) ([]byte, error)
	Versions(ctx context.Context, part string) ([]ecfr.Version, error)
}

// Config configures the tracker.
type Config struct {
	// SectionDelay is the pause between section fetches within a part. The
	// upstream is a shared government service; sequential fetches with a
	// delay are deliberate, not a missing optimization. Default: 500ms.
	SectionDelay time.Duration
}

func (c *Config) defaults() {
	if c.SectionDelay <= 0 {
		c.SectionDelay = 500 * time.Millisecond
	}
}

// Tracker runs sync passes. At most one pass per part at a time; concurrent
// passes for different parts are fine.
type Tracker struct {
	store    *store.Store
	provider Provider
	config   Config
	logger   *slog.Logger
	newID    func() string

	mu     sync.Mutex
	inSync map[string]bool
}

// New creates a Tracker.
func New(st *store.Store, provider Provider, cfg Config, logger *slog.Logger) *Tracker {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    st,
		provider: provider,
		config:   cfg,
		logger:   logger,
		newID:    uuid.NewString,
		inSync:   make(map[string]bool),
	}
}

// SyncReport summarizes one sync pass over a part.
type SyncReport struct {
	Part      string `json:"part"`
	Sections  int    `json:"sections"`
	Skipped   int    `json:"skipped"`
	Unchanged int    `json:"unchanged"`
	Changed   int    `json:"changed"`
	Failed    int    `json:"failed"`
	Flagged   int64  `json:"annotations_flagged"`
}

// SyncPart runs one sync pass over a part's sections. The version list is
// fetched once; sections are then processed sequentially. Per-section
// failures are logged and recorded but never abort the pass — the failed
// section keeps its old cached version and is retried on the next pass.
func (t *Tracker) SyncPart(ctx context.Context, part string) (*SyncReport, error) {
	if !t.begin(part) {
		return nil, ErrSyncInProgress
	}
	defer t.end(part)

	versions, err := t.provider.Versions(ctx, part)
	if err != nil {
		return nil, fmt.Errorf("tracker: version list for part %s: %w", part, err)
	}
	latest := latestVersions(versions)

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &SyncReport{Part: part, Sections: len(ids)}
	t.logger.Info("tracker: sync pass started", "part", part, "sections", len(ids))

	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				t.logger.Info("tracker: sync pass interrupted", "part", part, "done", i)
				return report, ctx.Err()
			case <-time.After(t.config.SectionDelay):
			}
		}
		t.syncSection(ctx, part, id, latest[id], report)
	}

	t.logger.Info("tracker: sync pass complete", "part", part,
		"skipped", report.Skipped, "unchanged", report.Unchanged,
		"changed", report.Changed, "failed", report.Failed)
	return report, nil
}

// syncSection walks one section through the skip/refetch decision.
func (t *Tracker) syncSection(ctx context.Context, part, id string, v ecfr.Version, report *SyncReport) {
	if v.Removed {
		// The cached content stays; removal handling is a review concern,
		// not a deletion trigger.
		t.logger.Debug("tracker: section removed upstream", "section", id)
		report.Skipped++
		return
	}

	cached, err := t.store.GetSection(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		t.logger.Error("tracker: read cached section", "section", id, "error", err)
		report.Failed++
		return
	}
	if cached != nil && cached.SourceVersion >= v.AmendmentDate {
		report.Skipped++
		return
	}

	start := time.Now()
	raw, err := t.provider.SectionXML(ctx, v.AmendmentDate, part, id)
	if err != nil {
		t.logger.Warn("tracker: fetch section failed", "section", id, "error", err)
		t.logFetch(ctx, id, "failed", err, start)
		report.Failed++
		return
	}

	if cached != nil && bytes.Equal(raw, cached.RawXML) {
		// The provider listed an amendment but the text is byte-identical —
		// a non-substantive republish. Advance the version only.
		if err := t.store.AdvanceSourceVersion(ctx, id, v.AmendmentDate); err != nil {
			t.logger.Error("tracker: advance version", "section", id, "error", err)
			report.Failed++
			return
		}
		t.logFetch(ctx, id, "unchanged", nil, start)
		report.Unchanged++
		return
	}

	sec := regml.ParseSection(string(raw), regml.SectionMeta{
		Part:          part,
		Section:       id,
		SourceVersion: v.AmendmentDate,
	})
	nodes, err := json.Marshal(sec.Content)
	if err != nil {
		t.logger.Error("tracker: encode nodes", "section", id, "error", err)
		report.Failed++
		return
	}

	row := &store.SectionRow{
		ID:            id,
		Part:          part,
		Title:         sec.Title,
		SubpartLabel:  sec.SubpartLabel,
		SubpartTitle:  sec.SubpartTitle,
		NodesJSON:     string(nodes),
		RawXML:        raw,
		SourceVersion: v.AmendmentDate,
	}
	if err := t.store.UpsertSection(ctx, row); err != nil {
		// Swallowed per section: the cached version was never advanced, so
		// the next pass retries.
		t.logger.Error("tracker: cache write failed", "section", id, "error", err)
		t.logFetch(ctx, id, "failed", err, start)
		report.Failed++
		return
	}
	t.logFetch(ctx, id, "ok", nil, start)

	if cached == nil {
		// First load of this section — nothing changed from a user's view.
		report.Changed++
		return
	}

	changeType := "editorial"
	if v.Substantive {
		changeType = "substantive"
	}
	entry := &store.ChangelogEntry{
		ID:            t.newID(),
		SectionID:     id,
		Part:          part,
		VersionDate:   v.AmendmentDate,
		ChangeType:    changeType,
		EffectiveDate: v.EffectiveDate,
	}
	if err := t.store.InsertChangelog(ctx, entry); err != nil {
		t.logger.Error("tracker: changelog append", "section", id, "error", err)
	}

	flagged, err := t.store.MarkImpactedBySection(ctx, id)
	if err != nil {
		t.logger.Error("tracker: flag annotations", "section", id, "error", err)
	}
	report.Flagged += flagged
	report.Changed++
	t.logger.Info("tracker: section changed", "section", id,
		"version", v.AmendmentDate, "type", changeType, "annotations_flagged", flagged)
}

// SyncStructure rebuilds a part's cached table of contents wholesale.
func (t *Tracker) SyncStructure(ctx context.Context, part string) (*PartTOC, error) {
	root, err := t.provider.Structure(ctx, part)
	if err != nil {
		return nil, fmt.Errorf("tracker: structure for part %s: %w", part, err)
	}
	toc := BuildTOC(root)

	payload, err := json.Marshal(toc)
	if err != nil {
		return nil, fmt.Errorf("tracker: encode toc: %w", err)
	}
	row := &store.PartTOCRow{Part: toc.Part, Title: toc.Title, TOCJSON: string(payload)}
	if err := t.store.UpsertPartTOC(ctx, row); err != nil {
		return nil, err
	}
	t.logger.Info("tracker: structure synced", "part", part, "subparts", len(toc.Subparts))
	return toc, nil
}

func (t *Tracker) logFetch(ctx context.Context, sectionID, status string, ferr error, start time.Time) {
	entry := &store.FetchLogEntry{
		ID:         t.newID(),
		SectionID:  sectionID,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		FetchedAt:  time.Now().UnixMilli(),
	}
	if ferr != nil {
		entry.ErrorMessage = ferr.Error()
	}
	if err := t.store.InsertFetchLog(ctx, entry); err != nil {
		t.logger.Warn("tracker: fetch log write", "section", sectionID, "error", err)
	}
}

func (t *Tracker) begin(part string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inSync[part] {
		return false
	}
	t.inSync[part] = true
	return true
}

func (t *Tracker) end(part string) {
	t.mu.Lock()
	delete(t.inSync, part)
	t.mu.Unlock()
}

// latestVersions reduces a version list to the most recent entry per
// section identifier.
func latestVersions(versions []ecfr.Version) map[string]ecfr.Version {
	latest := make(map[string]ecfr.Version, len(versions))
	for _, v := range versions {
		if cur, ok := latest[v.Identifier]; !ok || v.AmendmentDate > cur.AmendmentDate {
			latest[v.Identifier] = v
		}
	}
	return latest
}
