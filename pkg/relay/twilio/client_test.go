package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
)

func TestStartCall(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotTwiml string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotTwiml = r.PostFormValue("Twiml")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA123"}`))
	}))
	defer srv.Close()

	c := NewClient("AC1", "token", "+15550100", srv.URL, srv.Client())
	sid, err := c.StartCall(context.Background(), "+15550199", "wss://relay.example/relay", language.Default())
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("sid = %q, want CA123", sid)
	}
	if gotPath != "/2010-04-01/Accounts/AC1/Calls.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUser != "AC1" || gotPass != "token" {
		t.Fatalf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotTo != "+15550199" || gotFrom != "+15550100" {
		t.Fatalf("to/from = %q/%q", gotTo, gotFrom)
	}
	for _, want := range []string{
		`url="wss://relay.example/relay"`,
		`transcriptionProvider="google"`,
		`ttsProvider="amazon"`,
		`ttsLanguage="en-US"`,
		`voice="Polly.Joanna"`,
	} {
		if !strings.Contains(gotTwiml, want) {
			t.Fatalf("twiml %q missing %q", gotTwiml, want)
		}
	}
}

func TestStartCallErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"authentication failed"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("AC1", "bad", "+15550100", srv.URL, srv.Client())
	if _, err := c.StartCall(context.Background(), "+15550199", "wss://relay.example/relay", language.Default()); err == nil {
		t.Fatalf("expected error on 401 response")
	}
}

func TestStartCallUnconfigured(t *testing.T) {
	c := NewClient("", "", "", "", nil)
	if _, err := c.StartCall(context.Background(), "+15550199", "wss://relay.example/relay", language.Default()); err == nil {
		t.Fatalf("expected error when credentials are missing")
	}
}

func TestRelayTwiMLEscapesGreeting(t *testing.T) {
	lang := language.Language{
		Code:          "en-US",
		Voice:         "Polly.Joanna",
		Transcription: "en-US",
		Greeting:      `Hello & "welcome" <caller>`,
	}
	doc := RelayTwiML("wss://relay.example/relay", lang)
	if strings.Contains(doc, `<caller>`) {
		t.Fatalf("greeting not escaped: %q", doc)
	}
	for _, want := range []string{"&amp;", "&lt;caller&gt;"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("twiml %q missing escaped %q", doc, want)
		}
	}
}
