// Package httpserver exposes comicservice over HTTP: a stdlib net/http
// ServeMux with Go 1.22+ method-pattern routing (no third-party router
// appears anywhere in the example corpus), wrapping every response in the
// envelope shape of spec.md §6. Grounded on original_source/src/main.rs and
// lib.rs for the route table and response envelope, and on the teacher's
// use of log/slog for request logging.
package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jm-archive/jm-downloader/internal/comicservice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// facade is the subset of *comicservice.Service the server depends on.
type facade interface {
	GetInfo(comicID int64) (*comicservice.ComicInfo, error)
	DownloadChapter(comicID int64, chapterIDs []int64, expireSeconds int64) (*comicservice.ChapterDownloadData, error)
	DownloadComic(comicID int64, merge bool, encrypt string, expireSeconds int64) (*comicservice.ComicDownloadData, error)
}

// Options configures New.
type Options struct {
	DownloadDir   string
	EnableMetrics bool
}

// New builds the HTTP handler: the three comic API endpoints, a health
// check, a static mount serving DownloadDir under /download/, and an
// optional Prometheus scrape endpoint, all behind CORS and logging
// middleware carried as ambient concerns regardless of spec.md's Non-goals
// on the outer HTTP surface.
func New(svc facade, logger *slog.Logger, opts Options) http.Handler {
	h := &handler{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("POST /api/comic/getInfo", h.getInfo)
	mux.HandleFunc("POST /api/comic/downloadChapter", h.downloadChapter)
	mux.HandleFunc("POST /api/comic/downloadComic", h.downloadComic)

	if opts.DownloadDir != "" {
		fs := http.FileServer(http.Dir(opts.DownloadDir))
		mux.Handle("GET /download/", http.StripPrefix("/download/", fs))
	}
	if opts.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return withLogging(logger, withCORS(mux))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type handler struct {
	svc    facade
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ok(map[string]string{"status": "up"}))
}

func writeJSON(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	h.logger.Warn("request failed", "error", err)
	writeJSON(w, fail(err))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
