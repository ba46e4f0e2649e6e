package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Vipr728/Cascadia/pkg/relay/analysis"
	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/lifecycle"
	"github.com/Vipr728/Cascadia/pkg/relay/mw"
	"github.com/Vipr728/Cascadia/pkg/relay/reply"
	"github.com/Vipr728/Cascadia/pkg/relay/session"
	"github.com/Vipr728/Cascadia/pkg/relay/sessions"
	"github.com/Vipr728/Cascadia/pkg/relay/store"
)

// RelayHandler upgrades /relay requests and hands each connection to a
// session handler. Twilio is the expected caller, so origin checks are
// intentionally open.
type RelayHandler struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      *store.Store
	Replies    reply.Generator
	Dispatcher *analysis.Dispatcher
	Lifecycle  *lifecycle.Lifecycle
	Sessions   *sessions.Tracker
}

func (h RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed", "")
		return
	}
	if h.Lifecycle.IsDraining() {
		writeError(w, r, http.StatusServiceUnavailable, "overloaded", "relay is draining", "")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.MaxJSONMessageBytes)
	}

	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("request_id", reqID)

	defaultLang, ok := language.ByCode(h.Config.DefaultLanguage)
	if !ok {
		defaultLang = language.Default()
	}

	s, err := session.New(session.Dependencies{
		Conn:            conn,
		Logger:          logger,
		Store:           h.Store,
		Replies:         h.Replies,
		Dispatcher:      h.Dispatcher,
		DefaultLanguage: defaultLang,
		WriteTimeout:    h.Config.WSWriteTimeout,
	})
	if err != nil {
		logger.Error("initializing relay session failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := func() {}
	if h.Sessions != nil {
		unregister = h.Sessions.Register(func() {
			cancel()
			_ = conn.Close()
		})
	}
	defer unregister()

	if err := s.Run(ctx); err != nil {
		logger.Warn("relay session ended with error", "error", err)
	}
}
