// Package server assembles the relay: shared state, handlers, routes, and
// the middleware chain.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Vipr728/Cascadia/pkg/relay/analysis"
	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/handlers"
	"github.com/Vipr728/Cascadia/pkg/relay/lifecycle"
	"github.com/Vipr728/Cascadia/pkg/relay/mw"
	"github.com/Vipr728/Cascadia/pkg/relay/reply"
	"github.com/Vipr728/Cascadia/pkg/relay/sessions"
	"github.com/Vipr728/Cascadia/pkg/relay/store"
	"github.com/Vipr728/Cascadia/pkg/relay/twilio"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store      *store.Store
	replies    reply.Generator
	records    *analysis.FileStore
	dispatcher *analysis.Dispatcher
	twilio     *twilio.Client
	lifecycle  *lifecycle.Lifecycle
	sessions   *sessions.Tracker
}

// New wires the full service. The reply generator is injected so tests can
// run the relay without a Gemini key.
func New(cfg config.Config, logger *slog.Logger, replies reply.Generator) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	records := analysis.NewFileStore(cfg.DataDir)
	client := analysis.NewClient(cfg.AnalysisURL, httpClient)

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		store:      store.New(logger),
		replies:    replies,
		records:    records,
		dispatcher: analysis.NewDispatcher(client, records, logger, cfg.AnalysisTimeout),
		twilio:     twilio.NewClient(cfg.TwilioAccountSid, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.TwilioBaseURL, httpClient),
		lifecycle:  &lifecycle.Lifecycle{},
		sessions:   sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.NotFoundHandler{})
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})

	s.mux.Handle("/relay", handlers.RelayHandler{
		Config:     s.cfg,
		Logger:     s.logger,
		Store:      s.store,
		Replies:    s.replies,
		Dispatcher: s.dispatcher,
		Lifecycle:  s.lifecycle,
		Sessions:   s.sessions,
	})

	s.mux.Handle("/v1/calls", handlers.CallHandler{
		Config: s.cfg,
		Logger: s.logger,
		Twilio: s.twilio,
	})

	s.mux.Handle("/v1/analyses/latest", handlers.LatestAnalysisHandler{
		Logger:  s.logger,
		Records: s.records,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness and makes /relay refuse new connections.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

// WaitSessions blocks until all live calls finish or ctx expires.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

// CancelSessions force-closes whatever calls are still connected.
func (s *Server) CancelSessions() int {
	return s.sessions.CancelAll()
}

func (s *Server) ActiveSessions() int {
	return s.sessions.Count()
}
