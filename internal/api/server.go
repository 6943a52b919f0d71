// Package api exposes the importer over HTTP.
//
// Routes:
//
//	GET  /healthz                    → liveness
//	POST /api/import                 → {"action":"start"|"status"|"cancel","importId":"..."}
//	GET  /api/imports                → recent runs, newest first
//	GET  /api/imports/{id}/discards  → discard report of one run
//	GET  /api/properties             → property search
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/importer"
	"github.com/kzetxa/getmoneyclaude/internal/report"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Importer is the part of importer.Service the HTTP surface drives.
type Importer interface {
	StartAsync(ctx context.Context) importer.Response
	Status(ctx context.Context, importID string) importer.Response
	Cancel(ctx context.Context, importID string) importer.Response
}

var _ Importer = (*importer.Service)(nil)

// Config controls server startup.
type Config struct {
	Addr string
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to the importer and the store.
type Server struct {
	cfg    Config
	imp    Importer
	store  report.Store
	search storage.PropertyStore
	log    zerolog.Logger
	router chi.Router
}

// NewServer constructs a Server with its routes.
func NewServer(cfg Config, imp Importer, repo storage.Repository, log zerolog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, imp: imp, store: repo, search: repo, log: log, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("api: listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/import" {
			w.Header().Set("Allow", http.MethodPost)
		}
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/import", s.handleImport)
		r.Get("/imports", s.handleRecent)
		r.Get("/imports/{id}/discards", s.handleDiscards)
		r.Get("/properties", s.handleSearch)
	})
}

// requestLog logs one line per request at debug level.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("api: request")
	})
}

type importRequest struct {
	Action   string `json:"action"`
	ImportID string `json:"importId"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		msg := "Invalid request body."
		if errors.Is(err, io.EOF) {
			msg = "Request body is missing."
		}
		writeJSON(w, http.StatusBadRequest, importer.Response{Success: false, Message: msg})
		return
	}

	var resp importer.Response
	switch strings.TrimSpace(req.Action) {
	case "":
		writeJSON(w, http.StatusBadRequest, importer.Response{Message: "Missing 'action' in the request body."})
		return
	case "start":
		resp = s.imp.StartAsync(r.Context())
	case "status":
		resp = s.imp.Status(r.Context(), req.ImportID)
	case "cancel":
		resp = s.imp.Cancel(r.Context(), req.ImportID)
	default:
		writeJSON(w, http.StatusBadRequest, importer.Response{Message: "Unknown action: " + req.Action})
		return
	}
	writeJSON(w, statusFor(resp), resp)
}

// statusFor maps a service response to an HTTP status.
func statusFor(resp importer.Response) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.Message == importer.MsgMissingID:
		return http.StatusBadRequest
	case resp.Message == importer.MsgNotFound:
		return http.StatusNotFound
	case resp.Message == importer.MsgInProgress, resp.Message == importer.MsgAlreadyFinish:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", report.DefaultRecent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := s.store.ListImports(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]report.RecentImport, len(runs))
	for i, run := range runs {
		out[i] = report.RecentImport{ImportRun: run, SuccessRate: report.SuccessRate(run)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDiscards(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", report.DefaultTopErrors)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep, err := report.Build(r.Context(), s.store, chi.URLParam(r, "id"), report.Options{TopErrors: top})
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	props, err := s.search.Search(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func parseFilter(r *http.Request) (storage.SearchFilter, error) {
	q := r.URL.Query()
	f := storage.SearchFilter{
		OwnerName:    strings.TrimSpace(q.Get("owner")),
		City:         strings.TrimSpace(q.Get("city")),
		PropertyType: strings.TrimSpace(q.Get("type")),
	}
	var err error
	if f.MinBalance, err = floatParam(q.Get("min_balance"), "min_balance"); err != nil {
		return f, err
	}
	if f.MaxBalance, err = floatParam(q.Get("max_balance"), "max_balance"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(r, "limit", 0); err != nil {
		return f, err
	}
	return f, nil
}

func floatParam(v, name string) (*float64, error) {
	if v = strings.TrimSpace(v); v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, v)
	}
	return &f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("api: request failed")
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, importer.Response{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
