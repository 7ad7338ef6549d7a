// Package httpapi exposes the derived views to the rendering layer
// over JSON.
//
// Presentation itself is out of scope; this is transport only. GET
// endpoints serve fresh projections computed against the current cache
// snapshot, POST endpoints let the surrounding client shell push event
// pages and post facts into the engine.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/enrich"
	"github.com/dmoskov/shadowsky/internal/event"
	"github.com/dmoskov/shadowsky/internal/ingest"
)

// Server is the HTTP view server.
type Server struct {
	inbox  *ingest.Inbox
	store  *cache.Store
	engine *engine.Engine
	coord  *enrich.Coordinator
	router chi.Router
}

// New creates a server over the given collaborators.
// The coordinator may be nil when no fetcher is configured; the enrich
// endpoint then reports the frontier as unreachable.
func New(inbox *ingest.Inbox, store *cache.Store, eng *engine.Engine, coord *enrich.Coordinator) *Server {
	s := &Server{
		inbox:  inbox,
		store:  store,
		engine: eng,
		coord:  coord,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/notifications", s.handleNotifications)
		r.Get("/conversations", s.handleConversations)
		r.Get("/frontier", s.handleFrontier)
		r.Get("/stats", s.handleStats)
		r.Post("/events", s.handlePushEvents)
		r.Post("/posts", s.handlePushPosts)
		r.Post("/enrich", s.handleEnrich)
	})

	s.router = r
}

// Handler returns the router for testing and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on the given address until the listener fails.
func (s *Server) Start(addr string) error {
	slog.Info("view server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// --- View handlers ---

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	items := s.engine.ProcessAggregation(s.inbox.Events())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	threads := s.engine.BuildConversations(s.inbox.Replies(), snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"threads":       threads,
		"count":         len(threads),
		"cache_version": snap.Version(),
	})
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	frontier := s.engine.Frontier(s.inbox.Replies(), snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frontier":      frontier,
		"count":         len(frontier),
		"cache_version": snap.Version(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := engine.ComputeStats(s.inbox.Result(), s.store.Snapshot())
	writeJSON(w, http.StatusOK, stats)
}

// --- Ingestion handlers ---

func (s *Server) handlePushEvents(w http.ResponseWriter, r *http.Request) {
	var page ingest.Page
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		http.Error(w, "invalid event page", http.StatusBadRequest)
		return
	}
	added := s.inbox.AddPage(page)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"new_events": added,
		"inbox":      s.inbox.Len(),
	})
}

func (s *Server) handlePushPosts(w http.ResponseWriter, r *http.Request) {
	var posts []event.PostFact
	if err := json.NewDecoder(r.Body).Decode(&posts); err != nil {
		http.Error(w, "invalid post facts", http.StatusBadRequest)
		return
	}
	merged := s.store.Merge(posts)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"merged":        merged,
		"cache_size":    s.store.Len(),
		"cache_version": s.store.Version(),
	})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if s.coord == nil {
		http.Error(w, "no fetcher configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	err := s.coord.Enrich(ctx, s.inbox.Replies())
	resp := map[string]interface{}{
		"status":        "ok",
		"states":        s.coord.StateCounts(),
		"cache_size":    s.store.Len(),
		"cache_version": s.store.Version(),
	}
	if err != nil {
		// Batch failures degrade the views, they do not fail the request.
		resp["status"] = "partial"
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}
