// Package reply turns conversation history into one assistant reply. The
// relay must always produce some outbound text for a prompt event, so any
// model failure is converted into a fixed apology in the conversation's
// language; nothing propagates past this boundary.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
	"github.com/Vipr728/Cascadia/pkg/relay/store"
	"github.com/Vipr728/Cascadia/pkg/relay/transcript"
)

// systemInstruction is prepended to every prompt. It is not a conversation
// turn and never appears in transcripts.
const systemInstruction = "You are a helpful assistant. This conversation is being translated to voice, so answer carefully. " +
	"When you respond, please spell out all numbers, for example twenty not 20. Do not include emojis in your responses. " +
	"Do not include bullet points, asterisks, or special symbols."

// Generator produces a reply for the conversation so far. Implementations
// never return an empty string.
type Generator interface {
	Generate(ctx context.Context, history []store.Turn, lang language.Language) string
}

type textModel interface {
	generateText(ctx context.Context, prompt string) (string, error)
}

// Gemini generates replies with the Gemini API.
type Gemini struct {
	model  textModel
	logger *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		model:  genaiModel{client: client, name: modelName},
		logger: logger,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, history []store.Turn, lang language.Language) string {
	prompt := buildPrompt(history, lang)
	text, err := g.model.generateText(ctx, prompt)
	if err != nil {
		logger := g.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("reply generation failed, using fallback", "language", lang.Code, "error", err)
		return language.Fallback(lang.Code)
	}
	return text
}

// buildPrompt produces a single text prompt: system instruction, the
// linearized transcript so far, an explicit pointer at the last user
// utterance, and the language directive.
func buildPrompt(history []store.Turn, lang language.Language) string {
	lastUser := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == store.RoleUser {
			lastUser = history[i].Text
			break
		}
	}

	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nConversation history:\n")
	b.WriteString(transcript.Build(history))
	b.WriteString("\n\nPlease respond to: ")
	b.WriteString(lastUser)
	if name := strings.TrimSpace(lang.Name); name != "" {
		b.WriteString("\n\nRespond in ")
		b.WriteString(name)
		b.WriteString(".")
	}
	return b.String()
}

type genaiModel struct {
	client *genai.Client
	name   string
}

func (m genaiModel) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}
