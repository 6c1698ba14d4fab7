// Package server hosts compositions over HTTP: the manifest and media as
// static files, and a JSON API that opens composition sessions and serves
// their layout and per-frame state.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/media"
	"github.com/ivlev/stitchpreview/internal/progress"
	"github.com/ivlev/stitchpreview/internal/source"
)

// StaticPrefix is the URL path media files are served under.
const StaticPrefix = "/static"

type Options struct {
	Registry  *composition.Registry
	Fetcher   source.Fetcher
	StaticDir string
	Manifest  string // URL path the manifest is served at
	MediaMode string
	DefaultID string
	// ProgressDir, if set, exposes the render's _progress.json.
	ProgressDir string
	// SessionTTL and MaxSessions bound the session store; zero means default.
	SessionTTL  time.Duration
	MaxSessions int
	Logger      zerolog.Logger
}

type Server struct {
	registry  *composition.Registry
	fetcher   source.Fetcher
	staticDir string
	manifest  string
	defaultID string
	progress  string
	media     *media.Resolver
	logger    zerolog.Logger

	sessions *sessionStore
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(opts Options) (*Server, error) {
	if opts.Registry == nil || opts.Fetcher == nil {
		return nil, errors.New("server needs a registry and a manifest fetcher")
	}
	mr, err := media.ForURL(opts.MediaMode, StaticPrefix)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		registry:  opts.Registry,
		fetcher:   opts.Fetcher,
		staticDir: opts.StaticDir,
		manifest:  opts.Manifest,
		defaultID: opts.DefaultID,
		progress:  opts.ProgressDir,
		media:     mr,
		logger:    opts.Logger,
		sessions:  newSessionStore(opts.SessionTTL, opts.MaxSessions),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Handler returns the router wrapped with logging and CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/compositions", s.listCompositions).Methods("GET")
	api.HandleFunc("/sessions", s.openSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.getSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.closeSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/layout", s.getLayout).Methods("GET")
	api.HandleFunc("/sessions/{id}/cues", s.getCues).Methods("GET")
	api.HandleFunc("/sessions/{id}/timeline", s.getTimeline).Methods("GET")
	api.HandleFunc("/sessions/{id}/frames/{frame:-?[0-9]+}", s.getFrame).Methods("GET")
	api.HandleFunc("/sessions/{id}/posters/{frame:[0-9]+}.png", s.getPoster).Methods("GET")

	if s.manifest != "" {
		r.Handle("/"+s.manifest, noCacheMiddleware(http.HandlerFunc(s.serveManifest))).Methods("GET", "HEAD")
	}
	if s.progress != "" {
		r.Handle("/"+progress.ProgressFile, noCacheMiddleware(http.HandlerFunc(s.serveProgress))).Methods("GET", "HEAD")
	}
	if s.staticDir != "" {
		files := http.StripPrefix(StaticPrefix+"/", http.FileServer(http.Dir(s.staticDir)))
		r.PathPrefix(StaticPrefix + "/").Handler(noCacheMiddleware(files)).Methods("GET", "HEAD")
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return corsHandler.Handler(r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests and abandons open sessions.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("static_dir", s.staticDir).Str("media_mode", s.media.Mode()).Msg("serving compositions")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close abandons every open session.
func (s *Server) Close() {
	s.cancel()
	s.sessions.closeAll()
}
