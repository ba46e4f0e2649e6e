package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/lifecycle"
	"github.com/Vipr728/Cascadia/pkg/relay/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK              bool     `json:"ok"`
		Draining        bool     `json:"draining"`
		ActiveSessions  int      `json:"active_sessions"`
		TwilioEnabled   bool     `json:"twilio_enabled"`
		DefaultLanguage string   `json:"default_language"`
		Issues          []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key is not configured")
	}
	if strings.TrimSpace(h.Config.AnalysisURL) == "" {
		issues = append(issues, "analysis url is not configured")
	}
	if strings.TrimSpace(h.Config.DataDir) == "" {
		issues = append(issues, "data dir is not configured")
	}
	if _, ok := language.ByCode(h.Config.DefaultLanguage); !ok {
		issues = append(issues, "default language is not supported")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:              ok,
		Draining:        draining,
		ActiveSessions:  h.Sessions.Count(),
		TwilioEnabled:   h.Config.TwilioConfigured(),
		DefaultLanguage: h.Config.DefaultLanguage,
		Issues:          issues,
	})
}
