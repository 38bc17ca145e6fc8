package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stashkit/internal/manifest"
	"stashkit/internal/stash"
	"stashkit/internal/store"
	"stashkit/internal/watch"
)

// Uploads above this size are rejected before buffering.
const maxUploadBytes = 2 << 30

type server struct {
	store    store.Store
	hub      *watch.Hub
	manifest *manifest.Manifest
}

func newServer(st store.Store, hub *watch.Hub, m *manifest.Manifest) *server {
	return &server{store: st, hub: hub, manifest: m}
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	opts := store.UploadOptions{
		Key:       strings.TrimSpace(q.Get("key")),
		Branch:    strings.TrimSpace(q.Get("branch")),
		Overwrite: true,
	}
	if raw := q.Get("overwrite"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid overwrite flag", http.StatusBadRequest)
			return
		}
		opts.Overwrite = v
	}
	if raw := strings.TrimSpace(q.Get("expires_at")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid expires_at", http.StatusBadRequest)
			return
		}
		opts.ExpiresAt = t
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "read payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.store.Upload(r.Context(), name, payload, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.hub.Publish(watch.NewEvent(watch.EventSaved, name, &rec))
	writeJSON(w, rec)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	records, err := s.store.List(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []stash.Record{}
	}
	writeJSON(w, records)
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if name == "" || err != nil {
		http.Error(w, "name and numeric id are required", http.StatusBadRequest)
		return
	}
	payload, rec, err := s.store.Download(r.Context(), name, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "stash not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	meta, err := json.Marshal(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(store.RecordHeader, string(meta))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	n, err := s.store.Delete(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if n > 0 {
		s.hub.Publish(watch.NewEvent(watch.EventDeleted, name, nil))
	}
	writeJSON(w, store.DeleteResponse{Deleted: n})
}

func (s *server) handlePrune(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("now")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid now", http.StatusBadRequest)
			return
		}
		now = t
	}

	var keep func(stash.Record) bool
	if s.manifest != nil {
		keep = func(rec stash.Record) bool { return s.manifest.Keep(rec.Name) }
	}
	pruned, err := s.store.Prune(r.Context(), now, keep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pruned == nil {
		pruned = []stash.Record{}
	}
	for i := range pruned {
		s.hub.Publish(watch.NewEvent(watch.EventPruned, pruned[i].Name, &pruned[i]))
	}
	writeJSON(w, pruned)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
