// Package protocol implements the JSON wire format spoken over one
// ConversationRelay websocket connection. Every frame is an object with a
// "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeSetup     = "setup"
	TypePrompt    = "prompt"
	TypeInterrupt = "interrupt"
	TypeText      = "text"
	TypeControl   = "control"

	ControlSetLanguage = "set-language"
)

type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Message: message, Param: param}
}

// Setup announces a new call. CallSid may be empty on malformed input; the
// connection handler decides what to do with it.
type Setup struct {
	Type    string `json:"type"`
	CallSid string `json:"callSid"`
}

// Prompt carries one finalized speech-recognition result.
type Prompt struct {
	Type        string `json:"type"`
	VoicePrompt string `json:"voicePrompt"`
}

// Interrupt signals that the caller started speaking over the assistant.
type Interrupt struct {
	Type string `json:"type"`
}

// Unknown is returned for frame types this relay does not recognize. The
// state machine stays permissive to protocol evolution, so decoding one is
// not an error.
type Unknown struct {
	Type string `json:"type"`
}

// DecodeInbound parses one inbound frame. Only structurally broken frames
// (invalid JSON, missing type) produce an error.
func DecodeInbound(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeSetup:
		var msg Setup
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid setup frame", "")
		}
		msg.CallSid = strings.TrimSpace(msg.CallSid)
		return msg, nil
	case TypePrompt:
		var msg Prompt
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid prompt frame", "")
		}
		return msg, nil
	case TypeInterrupt:
		return Interrupt{Type: typ}, nil
	default:
		return Unknown{Type: typ}, nil
	}
}

// Text is the outbound reply event. The relay always delivers the full reply
// in one frame, so Last is always true.
type Text struct {
	Type  string `json:"type"`
	Token string `json:"token"`
	Last  bool   `json:"last"`
}

func NewText(token string) Text {
	return Text{Type: TypeText, Token: token, Last: true}
}

// Control instructs the transport layer to change synthesis settings
// mid-call. It must be emitted before the reply it applies to.
type Control struct {
	Type     string `json:"type"`
	Control  string `json:"control"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

func NewSetLanguage(languageCode, voice string) Control {
	return Control{
		Type:     TypeControl,
		Control:  ControlSetLanguage,
		Language: languageCode,
		Voice:    voice,
	}
}
