// Package session drives the per-call state machine. One Handler owns one
// websocket connection for the lifetime of one phone call and is the only
// writer of that call's conversation state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/protocol"
	"github.com/Vipr728/Cascadia/pkg/relay/reply"
	"github.com/Vipr728/Cascadia/pkg/relay/store"
	"github.com/Vipr728/Cascadia/pkg/relay/transcript"
)

type state int

const (
	stateAwaitingSetup state = iota
	stateActive
	stateClosed
)

// Conn is the subset of *websocket.Conn the handler needs.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dispatcher receives the finalization work for a closed call. Dispatch runs
// on a detached goroutine; the handler never waits for it.
type Dispatcher interface {
	Dispatch(callSid, transcript string, lang language.Language)
}

type Dependencies struct {
	Conn            Conn
	Logger          *slog.Logger
	Store           *store.Store
	Replies         reply.Generator
	Dispatcher      Dispatcher
	DefaultLanguage language.Language
	WriteTimeout    time.Duration
}

// Handler processes one connection's inbound events strictly in arrival
// order: the single Run goroutine is what guarantees that a prompt's reply
// is appended and emitted before the next prompt is even decoded.
type Handler struct {
	conn         Conn
	logger       *slog.Logger
	store        *store.Store
	replies      reply.Generator
	dispatcher   Dispatcher
	defaultLang  language.Language
	writeTimeout time.Duration

	state   state
	callSid string
}

func New(deps Dependencies) (*Handler, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Replies == nil {
		return nil, fmt.Errorf("reply generator is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("analysis dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultLanguage.Code == "" {
		deps.DefaultLanguage = language.Default()
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = 5 * time.Second
	}
	return &Handler{
		conn:         deps.Conn,
		logger:       deps.Logger,
		store:        deps.Store,
		replies:      deps.Replies,
		dispatcher:   deps.Dispatcher,
		defaultLang:  deps.DefaultLanguage,
		writeTimeout: deps.WriteTimeout,
	}, nil
}

// Run reads and applies inbound events until the transport disconnects,
// then finalizes the call. It returns nil on a clean close.
func (h *Handler) Run(ctx context.Context) error {
	var readErr error
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		h.handleFrame(ctx, data)
	}

	h.finalize()

	if isExpectedClose(readErr) {
		return nil
	}
	return readErr
}

func (h *Handler) handleFrame(ctx context.Context, data []byte) {
	decoded, err := protocol.DecodeInbound(data)
	if err != nil {
		h.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch msg := decoded.(type) {
	case protocol.Setup:
		h.handleSetup(msg)
	case protocol.Prompt:
		h.handlePrompt(ctx, msg)
	case protocol.Interrupt:
		// Advisory only: an in-flight reply is neither truncated nor canceled.
		h.logger.Info("interrupt received", "call_sid", h.callSid)
	case protocol.Unknown:
		h.logger.Warn("ignoring unknown event type", "type", msg.Type, "call_sid", h.callSid)
	}
}

func (h *Handler) handleSetup(msg protocol.Setup) {
	if msg.CallSid == "" {
		h.logger.Warn("setup event without callSid, staying in awaiting-setup")
		return
	}
	if h.state == stateActive {
		if msg.CallSid != h.callSid {
			// The callSid binding is immutable for the connection's lifetime.
			h.logger.Warn("ignoring setup for a different call on a bound connection",
				"call_sid", h.callSid, "event_call_sid", msg.CallSid)
			return
		}
		h.logger.Info("re-setup received, resetting session", "call_sid", h.callSid)
	}

	h.store.Create(msg.CallSid, h.defaultLang)
	h.callSid = msg.CallSid
	h.state = stateActive
	h.logger.Info("session established", "call_sid", h.callSid, "language", h.defaultLang.Code)
}

func (h *Handler) handlePrompt(ctx context.Context, msg protocol.Prompt) {
	if h.state != stateActive {
		h.logger.Warn("dropping prompt outside an active session")
		return
	}
	snap, ok := h.store.Get(h.callSid)
	if !ok {
		h.logger.Warn("dropping prompt for unknown session", "call_sid", h.callSid)
		return
	}

	h.store.Append(h.callSid, store.Turn{Role: store.RoleUser, Text: msg.VoicePrompt})

	lang := snap.Language
	if detected, fired := language.Detect(msg.VoicePrompt); fired {
		lang = detected
		h.store.SetLanguage(h.callSid, detected)
		h.logger.Info("language switch requested", "call_sid", h.callSid, "language", detected.Code, "voice", detected.Voice)
		// The synthesis side must switch before the upcoming reply audio.
		if err := h.sendJSON(protocol.NewSetLanguage(detected.Code, detected.Voice)); err != nil {
			h.logger.Warn("writing language control event failed", "call_sid", h.callSid, "error", err)
		}
	}

	snap, ok = h.store.Get(h.callSid)
	if !ok {
		h.logger.Warn("session evicted mid-prompt, dropping reply", "call_sid", h.callSid)
		return
	}
	replyText := h.replies.Generate(ctx, snap.History, lang)
	h.store.Append(h.callSid, store.Turn{Role: store.RoleAssistant, Text: replyText})

	if err := h.sendJSON(protocol.NewText(replyText)); err != nil {
		h.logger.Warn("writing reply event failed", "call_sid", h.callSid, "error", err)
	}
}

// finalize runs the close transition: build the transcript, launch the
// analysis dispatch on its own goroutine, and evict the session. Eviction
// is unconditional; a failed or slow dispatch must not leak the session.
func (h *Handler) finalize() {
	if h.state == stateClosed {
		return
	}
	h.state = stateClosed
	if h.callSid == "" {
		h.logger.Info("connection closed before setup")
		return
	}

	snap, ok := h.store.Get(h.callSid)
	if !ok {
		h.logger.Warn("no session to finalize", "call_sid", h.callSid)
		return
	}

	text := transcript.Build(snap.History)
	go h.dispatcher.Dispatch(snap.CallSid, text, snap.Language)
	h.store.Evict(h.callSid)
	h.logger.Info("session finalized", "call_sid", h.callSid, "turns", len(snap.History))
}

func (h *Handler) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

func isExpectedClose(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
