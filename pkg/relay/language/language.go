// Package language holds the relay's supported-locale table and the
// best-effort mid-call language-switch detector.
package language

import (
	"strings"
	"unicode"
)

// Language describes one supported conversation locale: the BCP-47 code used
// on the wire, the human-readable name used in model prompts, and the
// transcription/synthesis parameters handed to the telephony provider.
type Language struct {
	Code          string // e.g. "es-MX"
	Name          string // e.g. "Spanish"
	Voice         string // synthesis voice, e.g. "Mia-Neural"
	Transcription string // speech-recognition locale
	Greeting      string // welcome greeting for outbound calls
}

var supported = []Language{
	{
		Code:          "en-US",
		Name:          "English",
		Voice:         "Polly.Joanna",
		Transcription: "en-US",
		Greeting:      "Hi! I'm your AI assistant. What can I help you with today?",
	},
	{
		Code:          "es-MX",
		Name:          "Spanish",
		Voice:         "Mia-Neural",
		Transcription: "es-MX",
		Greeting:      "¡Hola! Soy tu asistente de IA. ¿En qué puedo ayudarte?",
	},
	{
		Code:          "ru-RU",
		Name:          "Russian",
		Voice:         "Tatyana-Neural",
		Transcription: "ru-RU",
		Greeting:      "Привет! Я ваш голосовой ассистент. Чем могу помочь?",
	},
	{
		Code:          "fr-FR",
		Name:          "French",
		Voice:         "Lea",
		Transcription: "fr-FR",
		Greeting:      "Bonjour ! Je suis votre assistant IA. Comment puis-je vous aider ?",
	},
}

// triggers maps switch-request phrases to a language code. Evaluated in
// order, first match wins; all matching is done on the lowercased utterance.
var triggers = []struct {
	code    string
	phrases []string
}{
	{"es-MX", []string{"en español", "in spanish", "speak spanish", "habla español"}},
	{"ru-RU", []string{"in russian", "speak russian", "по-русски", "на русском"}},
	{"fr-FR", []string{"en français", "in french", "speak french", "parle français"}},
	{"en-US", []string{"in english", "speak english", "en inglés", "по-английски"}},
}

// Default returns the relay's default conversation language (US English).
func Default() Language {
	return supported[0]
}

// ByCode looks a language up by its BCP-47 code.
func ByCode(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	for _, l := range supported {
		if strings.EqualFold(l.Code, code) {
			return l, true
		}
	}
	return Language{}, false
}

// Supported returns the full locale table in declaration order.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Detect inspects a user utterance for a language-switch request. Explicit
// trigger phrases are checked first; failing that, any Cyrillic codepoint
// selects Russian. This is a heuristic, not a language-identification model:
// a missed switch is fine because the caller can simply ask again.
func Detect(text string) (Language, bool) {
	lowered := strings.ToLower(text)
	for _, t := range triggers {
		for _, phrase := range t.phrases {
			if strings.Contains(lowered, phrase) {
				l, ok := ByCode(t.code)
				return l, ok
			}
		}
	}
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return ByCode("ru-RU")
		}
	}
	return Language{}, false
}

var fallbacks = map[string]string{
	"en": "I'm sorry, I'm having trouble processing your request right now. Please try again.",
	"es": "Lo siento, estoy teniendo problemas para procesar tu solicitud. Por favor, inténtalo de nuevo.",
	"ru": "Извините, у меня возникли проблемы с обработкой вашего запроса. Пожалуйста, попробуйте ещё раз.",
	"fr": "Désolé, j'ai du mal à traiter votre demande pour le moment. Veuillez réessayer.",
}

// Fallback returns the apology sentence spoken when reply generation fails,
// in the language family of the given code.
func Fallback(code string) string {
	family := strings.ToLower(code)
	if i := strings.Index(family, "-"); i > 0 {
		family = family[:i]
	}
	if msg, ok := fallbacks[family]; ok {
		return msg
	}
	return fallbacks["en"]
}
