package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/store"
)

type scriptedReplies struct{}

func (scriptedReplies) Generate(_ context.Context, history []store.Turn, lang language.Language) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == store.RoleUser {
			return "echo: " + history[i].Text
		}
	}
	return "hello in " + lang.Name
}

func testConfig(t *testing.T, analysisURL string) config.Config {
	t.Helper()
	return config.Config{
		Addr:                ":0",
		GeminiAPIKey:        "test-key",
		GeminiModel:         "gemini-1.5-flash",
		AnalysisURL:         analysisURL,
		AnalysisTimeout:     5 * time.Second,
		DataDir:             t.TempDir(),
		DefaultLanguage:     "en-US",
		MaxJSONMessageBytes: 64 * 1024,
		WSWriteTimeout:      5 * time.Second,
		ReadHeaderTimeout:   10 * time.Second,
		ShutdownGracePeriod: 30 * time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := New(testConfig(t, "http://localhost:0"), discardLogger(), scriptedReplies{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestServer_HealthAndReady(t *testing.T) {
	s := New(testConfig(t, "http://localhost:0"), discardLogger(), scriptedReplies{})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/readyz status=%d body=%q", rr.Code, rr.Body.String())
	}

	s.SetDraining(true)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz while draining status=%d", rr.Code)
	}
}

func TestServer_LatestAnalysis_EmptyIs404(t *testing.T) {
	s := New(testConfig(t, "http://localhost:0"), discardLogger(), scriptedReplies{})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/analyses/latest", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_CallsRoute_UnconfiguredIs503(t *testing.T) {
	s := New(testConfig(t, "http://localhost:0"), discardLogger(), scriptedReplies{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(`{"to":"+15550199"}`))
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

// Full call round trip over a real websocket: setup, two prompts (the
// second switching to Spanish), disconnect, then the analysis artifacts
// land on disk with the record written before the pointer is readable.
func TestServer_RelayEndToEnd(t *testing.T) {
	analysisSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Transcript string `json:"transcript"`
			Language   string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode analysis request: %v", err)
		}
		if !strings.Contains(req.Transcript, "Human: Hello") {
			t.Errorf("transcript missing user turn: %q", req.Transcript)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"analysis":{"weaknesses":[{"severity":"low","title":"Pace","description":"spoke quickly","focus":"delivery"}]}}`))
	}))
	defer analysisSrv.Close()

	cfg := testConfig(t, analysisSrv.URL)
	s := New(cfg, discardLogger(), scriptedReplies{})

	httpSrv := httptest.NewServer(s.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/relay"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(frame string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write %q: %v", frame, err)
		}
	}
	read := func() map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return msg
	}

	send(`{"type":"setup","callSid":"CA100"}`)
	send(`{"type":"prompt","voicePrompt":"Hello"}`)

	first := read()
	if first["type"] != "text" || first["token"] != "echo: Hello" || first["last"] != true {
		t.Fatalf("first reply = %v", first)
	}

	send(`{"type":"prompt","voicePrompt":"por favor habla en español"}`)

	control := read()
	if control["type"] != "control" || control["control"] != "set-language" {
		t.Fatalf("expected control before text, got %v", control)
	}
	if control["language"] != "es-MX" || control["voice"] != "Mia-Neural" {
		t.Fatalf("control = %v", control)
	}
	second := read()
	if second["type"] != "text" {
		t.Fatalf("second reply = %v", second)
	}

	if err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.Fatalf("close: %v", err)
	}
	conn.Close()

	recordPath := filepath.Join(cfg.DataDir, "CA100.json")
	latestPath := filepath.Join(cfg.DataDir, "latest.json")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(latestPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("latest.json never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The pointer exists, so the record must already be complete.
	recordData, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var rec struct {
		CallSid    string          `json:"callSid"`
		Transcript string          `json:"transcript"`
		Analysis   json.RawMessage `json:"analysis"`
	}
	if err := json.Unmarshal(recordData, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.CallSid != "CA100" {
		t.Fatalf("record callSid = %q", rec.CallSid)
	}
	wantTranscript := strings.Join([]string{
		"Human: Hello",
		"Assistant: echo: Hello",
		"Human: por favor habla en español",
		"Assistant: echo: por favor habla en español",
	}, "\n")
	if rec.Transcript != wantTranscript {
		t.Fatalf("record transcript = %q, want %q", rec.Transcript, wantTranscript)
	}
	if !strings.Contains(string(rec.Analysis), "weaknesses") {
		t.Fatalf("record analysis = %s", rec.Analysis)
	}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/analyses/latest", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/v1/analyses/latest status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"callSid":"CA100"`) {
		t.Fatalf("latest body = %q", rr.Body.String())
	}
}

func TestServer_RelayRefusedWhileDraining(t *testing.T) {
	s := New(testConfig(t, "http://localhost:0"), discardLogger(), scriptedReplies{})
	s.SetDraining(true)

	httpSrv := httptest.NewServer(s.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/relay"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail while draining")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp = %v", resp)
	}
}
