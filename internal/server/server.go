// Package server exposes the HTTP boundary: the resolve endpoint form
// components fetch through, and read-only page listing for external
// tooling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"studio/internal/cache"
	"studio/internal/logging"
)

// Options configure the server.
type Options struct {
	Addr string
	// Templates served by GET /api/resolve, keyed by code. Missing codes
	// resolve to an empty object rather than an error.
	Templates map[string]any
	// ShutdownTimeout bounds graceful drain on Stop.
	ShutdownTimeout time.Duration
}

// Server wraps the HTTP listener over the metadata tier.
type Server struct {
	meta      *cache.MetadataManager
	templates map[string]any
	http      *http.Server
	timeout   time.Duration
}

// New builds a server reading pages through meta.
func New(meta *cache.MetadataManager, o Options) *Server {
	if o.Addr == "" {
		o.Addr = ":8466"
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		meta:      meta,
		templates: o.Templates,
		timeout:   o.ShutdownTimeout,
	}
	s.http = &http.Server{
		Addr:              o.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/resolve", s.handleResolveGet)
	mux.HandleFunc("POST /api/resolve", s.handleResolvePost)
	mux.HandleFunc("GET /api/pages", s.handleListPages)
	mux.HandleFunc("GET /api/pages/{id}", s.handleGetPage)
	return mux
}

// Run serves until ctx is cancelled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Server("listening on %s", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	logging.Server("shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// handleResolveGet serves a named template, or an empty object for
// unknown codes. The envelope matches the bus resolve events.
func (s *Server) handleResolveGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	code := q.Get("code")
	kind := q.Get("type")

	key := code
	if key == "" {
		key = id
	}
	data, ok := s.templates[key]
	if !ok {
		data = map[string]any{}
	}
	writeEnvelope(w, http.StatusOK, true, id, code, kind, data)
}

// handleResolvePost echoes submitted form data back in the envelope.
func (s *Server) handleResolvePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID       string         `json:"id"`
		Code     string         `json:"code"`
		Type     string         `json:"type"`
		FormData map[string]any `json:"formData"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "", "", "", map[string]any{
			"error": "malformed request body",
		})
		return
	}
	writeEnvelope(w, http.StatusOK, true, body.ID, body.Code, body.Type, body.FormData)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.meta.GetAllPages()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	pg, err := s.meta.GetPage(r.PathValue("id"))
	if errors.Is(err, cache.ErrPageNotFound) {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pg)
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, id, code, kind string, data any) {
	writeJSON(w, status, map[string]any{
		"success":   success,
		"id":        id,
		"code":      code,
		"type":      kind,
		"data":      data,
		"timestamp": time.Now().UnixMilli(),
		"source":    "remote",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Server("response encode failed: %v", err)
	}
}
