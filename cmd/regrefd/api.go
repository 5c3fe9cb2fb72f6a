package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/regref/regref/notes"
	"github.com/regref/regref/regml"
	"github.com/regref/regref/store"
	"github.com/regref/regref/tracker"
)

// api bundles the service dependencies behind the HTTP surface.
type api struct {
	store   *store.Store
	tracker *tracker.Tracker
	notes   *notes.Service
	logger  *slog.Logger
}

func (a *api) routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/parts/{part}/toc", a.getTOC)
		r.Post("/parts/{part}/sync", a.syncPart)
		r.Get("/parts/{part}/changes", a.getChanges)

		r.Get("/sections/{id}", a.getSection)
		r.Get("/sections/{id}/diff", a.getSectionDiff)
		r.Get("/sections/{id}/changelog", a.getSectionChangelog)
		r.Get("/sections/{id}/fetches", a.getFetchHistory)

		r.Post("/annotations", a.createAnnotation)
		r.Get("/annotations", a.listAnnotations)
		r.Delete("/annotations/{id}", a.deleteAnnotation)
		r.Post("/annotations/{id}/resolve", a.resolveAnnotation)
	})
}

func (a *api) getTOC(w http.ResponseWriter, r *http.Request) {
	part := chi.URLParam(r, "part")
	row, err := a.store.GetPartTOC(r.Context(), part)
	if err != nil {
		a.fail(w, err)
		return
	}
	var toc tracker.PartTOC
	if err := json.Unmarshal([]byte(row.TOCJSON), &toc); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"toc": toc, "synced_at": row.SyncedAt})
}

// syncPart runs a structure sync then a content sync, synchronously. The
// caller gets the pass report; long parts can take minutes, so clients
// should use a generous timeout.
func (a *api) syncPart(w http.ResponseWriter, r *http.Request) {
	part := chi.URLParam(r, "part")
	if _, err := a.tracker.SyncStructure(r.Context(), part); err != nil {
		a.fail(w, err)
		return
	}
	report, err := a.tracker.SyncPart(r.Context(), part)
	if err != nil {
		if errors.Is(err, tracker.ErrSyncInProgress) {
			writeJSON(w, 409, map[string]string{"error": "sync already running"})
			return
		}
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, report)
}

func (a *api) getChanges(w http.ResponseWriter, r *http.Request) {
	part := chi.URLParam(r, "part")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, 400, map[string]string{"error": "from and to are required (YYYY-MM-DD)"})
		return
	}
	report, err := a.tracker.Report(r.Context(), part, from, to)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, report)
}

func (a *api) getSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := a.store.GetSection(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	var content []regml.Node
	if err := json.Unmarshal([]byte(row.NodesJSON), &content); err != nil {
		a.fail(w, err)
		return
	}

	resp := map[string]any{
		"id":             row.ID,
		"part":           row.Part,
		"title":          row.Title,
		"subpart_label":  row.SubpartLabel,
		"subpart_title":  row.SubpartTitle,
		"content":        content,
		"source_version": row.SourceVersion,
	}
	// Neighbors come from the cached TOC when one exists.
	if tocRow, err := a.store.GetPartTOC(r.Context(), row.Part); err == nil {
		var toc tracker.PartTOC
		if json.Unmarshal([]byte(tocRow.TOCJSON), &toc) == nil {
			prev, next := toc.Neighbors(id)
			resp["prev"] = prev
			resp["next"] = next
		}
	}
	writeJSON(w, 200, resp)
}

func (a *api) getSectionDiff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asOf := r.URL.Query().Get("asOf")
	if asOf == "" {
		writeJSON(w, 400, map[string]string{"error": "asOf is required (YYYY-MM-DD)"})
		return
	}
	sd, err := a.tracker.DiffSection(r.Context(), id, asOf)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, sd)
}

func (a *api) getSectionChangelog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := a.store.ChangelogForSection(r.Context(), id, 100)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"section_id": id, "entries": entries})
}

func (a *api) getFetchHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hist, err := a.store.FetchHistory(r.Context(), id, 50)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"section_id": id, "fetches": hist})
}

func (a *api) createAnnotation(w http.ResponseWriter, r *http.Request) {
	var req notes.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	ann, err := a.notes.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, notes.ErrInvalid) {
			writeError(w, 400, err)
			return
		}
		a.fail(w, err)
		return
	}
	writeJSON(w, 201, ann)
}

// listAnnotations serves ?sectionId= scoped lists, or ?impacted=true for
// the change-review queue.
func (a *api) listAnnotations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("impacted") == "true" {
		anns, err := a.notes.ListImpacted(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"annotations": anns})
		return
	}
	sectionID := r.URL.Query().Get("sectionId")
	if sectionID == "" {
		writeJSON(w, 400, map[string]string{"error": "sectionId or impacted=true is required"})
		return
	}
	anns, err := a.notes.ListBySection(r.Context(), sectionID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"annotations": anns})
}

func (a *api) deleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := a.notes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (a *api) resolveAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keep bool `json:"keep"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if err := a.notes.Resolve(r.Context(), chi.URLParam(r, "id"), req.Keep); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "resolved"})
}

// fail maps service errors onto status codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, 404, err)
	default:
		a.logger.Error("api: request failed", "error", err)
		writeError(w, 500, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
