// Package analysis submits finished call transcripts to the external
// analysis service and persists the results. Analysis is best effort: a
// failed submission or write means no record for that call, nothing more.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client posts transcripts to the analysis endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{url: url, httpClient: httpClient}
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language,omitempty"`
}

type analyzeResponse struct {
	Analysis json.RawMessage `json:"analysis"`
}

// Analyze submits one transcript. The service wraps its result in an
// "analysis" field; responses without it are used as-is. A non-2xx status
// or a body that is not JSON means no analysis was produced.
func (c *Client) Analyze(ctx context.Context, transcript, languageName string) (json.RawMessage, error) {
	payload, err := json.Marshal(analyzeRequest{Transcript: transcript, Language: languageName})
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post analysis: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, snippet(body))
	}

	var envelope analyzeResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	if len(envelope.Analysis) > 0 && string(envelope.Analysis) != "null" {
		return envelope.Analysis, nil
	}
	return json.RawMessage(body), nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
