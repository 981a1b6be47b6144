// Package server exposes an engine context over connect. Clients connect to
// a slot, exchange item batches through RunMainLoop and send pings, control
// requests and file transfers through RunAsync.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/api"
)

var log = commonlog.GetLogger("rjs.server")

// RJSServer serves one engine context over HTTP.
type RJSServer struct {
	ctx      *adapter.Context
	sessions *SessionStore
	files    *FileStore
	console  *ConsoleService
	sweeper  *StaleSweeper
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures an RJSServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	workDir       string
	profile       string
	staleSpan     time.Duration
	sweepInterval time.Duration
}

// WithWorkDir sets the directory file transfers are confined to. The
// default is the current directory.
func WithWorkDir(dir string) ServerOption {
	return func(c *serverConfig) { c.workDir = dir }
}

// WithProfile sets code evaluated whenever the engine starts.
func WithProfile(profile string) ServerOption {
	return func(c *serverConfig) { c.profile = profile }
}

// WithStaleSpan sets how long a console client may stay silent before it
// is disconnected.
func WithStaleSpan(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.staleSpan = d }
}

// WithSweepInterval sets how often the stale sweeper runs.
func WithSweepInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.sweepInterval = d }
}

// New creates a server for ctx.
func New(ctx *adapter.Context, opts ...ServerOption) (*RJSServer, error) {
	cfg := &serverConfig{
		workDir:       ".",
		staleSpan:     5 * time.Minute,
		sweepInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	files, err := NewFileStore(cfg.workDir)
	if err != nil {
		return nil, err
	}
	sessions := NewSessionStore()
	console := NewConsoleService(ctx, sessions, files, cfg.profile)

	s := &RJSServer{
		ctx:      ctx,
		sessions: sessions,
		files:    files,
		console:  console,
		sweeper:  NewStaleSweeper(ctx.Exchange(), sessions, cfg.staleSpan, console.disconnect),
		mux:      http.NewServeMux(),
	}
	s.http = &http.Server{Handler: s.mux}

	path, handler := api.NewConsoleServiceHandler(console)
	s.mux.Handle(path, handler)

	s.stopSweeper = s.sweeper.Start(cfg.sweepInterval)
	return s, nil
}

// Handler returns the HTTP handler serving the console service.
func (s *RJSServer) Handler() http.Handler { return s.mux }

// Sessions returns the connected clients.
func (s *RJSServer) Sessions() *SessionStore { return s.sessions }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *RJSServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *RJSServer) Serve(ln net.Listener) error {
	log.Noticef("listening on %s (work directory %s)", ln.Addr(), s.files.Root())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown stops the engine, which answers every waiting call, and then
// shuts the HTTP server down.
func (s *RJSServer) Shutdown(ctx context.Context) error {
	s.Stop()
	return errors.Wrap(s.http.Shutdown(ctx), "shutdown")
}

// Stop stops the sweeper and the engine.
func (s *RJSServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	s.ctx.Close()
}
