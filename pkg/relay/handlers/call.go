package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/twilio"
)

// CallHandler places an outbound call whose audio is bridged back into the
// relay. POST /v1/calls {"to": "+1...", "language": "en-US"}.
type CallHandler struct {
	Config config.Config
	Logger *slog.Logger
	Twilio *twilio.Client
}

func (h CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed", "")
		return
	}
	if h.Twilio == nil || !h.Twilio.Configured() {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "outbound calling is not configured", "")
		return
	}

	var req struct {
		To       string `json:"to"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid json body", "")
		return
	}
	if strings.TrimSpace(req.To) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "to is required", "to")
		return
	}

	lang, ok := language.ByCode(h.Config.DefaultLanguage)
	if !ok {
		lang = language.Default()
	}
	if req.Language != "" {
		lang, ok = language.ByCode(req.Language)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unsupported language", "language")
			return
		}
	}

	sid, err := h.Twilio.StartCall(r.Context(), req.To, h.Config.PublicRelayURL, lang)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("starting call failed", "to", req.To, "error", err)
		}
		writeError(w, r, http.StatusBadGateway, "upstream_error", "failed to start call", "")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"callSid":  sid,
		"language": lang.Code,
	})
}
