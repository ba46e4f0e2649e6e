// Package twilio is a minimal client for the Twilio Calls REST API:
// just enough to place an outbound call whose media is bridged to the
// relay over a ConversationRelay websocket.
package twilio

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	accountSid string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accountSid, authToken, from, baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		accountSid: strings.TrimSpace(accountSid),
		authToken:  strings.TrimSpace(authToken),
		from:       strings.TrimSpace(from),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.accountSid != "" && c.authToken != "" && c.from != ""
}

// StartCall dials the given number and attaches the relay websocket via
// ConversationRelay TwiML. It returns the SID of the created call.
func (c *Client) StartCall(ctx context.Context, to, relayURL string, lang language.Language) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("twilio credentials are not configured")
	}
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("destination number is required")
	}
	if strings.TrimSpace(relayURL) == "" {
		return "", fmt.Errorf("relay url is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Twiml", RelayTwiML(relayURL, lang))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSid, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return "", fmt.Errorf("twilio error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Sid string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Sid == "" {
		return "", fmt.Errorf("twilio response missing call sid")
	}
	return decoded.Sid, nil
}

// RelayTwiML builds the ConversationRelay instruction document. Twilio
// transcribes with Google STT and synthesizes with Amazon voices; the
// attribute values come straight from the language table.
func RelayTwiML(relayURL string, lang language.Language) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("<Response><Connect><ConversationRelay")
	attr(&b, "url", relayURL)
	attr(&b, "welcomeGreeting", lang.Greeting)
	attr(&b, "transcriptionLanguage", lang.Transcription)
	attr(&b, "transcriptionProvider", "google")
	attr(&b, "ttsLanguage", lang.Code)
	attr(&b, "ttsProvider", "amazon")
	attr(&b, "voice", lang.Voice)
	b.WriteString("/></Connect></Response>")
	return b.String()
}

func attr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(b, []byte(value))
	b.WriteString(`"`)
}
