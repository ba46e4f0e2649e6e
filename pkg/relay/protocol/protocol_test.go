package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInbound_Setup(t *testing.T) {
	decoded, err := DecodeInbound([]byte(`{"type":"setup","callSid":" CA123 "}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg, ok := decoded.(Setup)
	if !ok {
		t.Fatalf("decoded %T, want Setup", decoded)
	}
	if msg.CallSid != "CA123" {
		t.Fatalf("callSid=%q, want CA123 (trimmed)", msg.CallSid)
	}
}

func TestDecodeInbound_SetupWithoutCallSid(t *testing.T) {
	decoded, err := DecodeInbound([]byte(`{"type":"setup"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg := decoded.(Setup); msg.CallSid != "" {
		t.Fatalf("callSid=%q, want empty", msg.CallSid)
	}
}

func TestDecodeInbound_Prompt(t *testing.T) {
	decoded, err := DecodeInbound([]byte(`{"type":"prompt","voicePrompt":"Hello"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg := decoded.(Prompt); msg.VoicePrompt != "Hello" {
		t.Fatalf("voicePrompt=%q", msg.VoicePrompt)
	}
}

func TestDecodeInbound_Interrupt(t *testing.T) {
	decoded, err := DecodeInbound([]byte(`{"type":"interrupt"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded.(Interrupt); !ok {
		t.Fatalf("decoded %T, want Interrupt", decoded)
	}
}

func TestDecodeInbound_UnknownTypeIsNotAnError(t *testing.T) {
	decoded, err := DecodeInbound([]byte(`{"type":"dtmf","digit":"5"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg, ok := decoded.(Unknown)
	if !ok || msg.Type != "dtmf" {
		t.Fatalf("decoded %T (%+v), want Unknown{dtmf}", decoded, decoded)
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	if _, err := DecodeInbound([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := DecodeInbound([]byte(`{"voicePrompt":"hi"}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	var decodeErr *DecodeError
	_, err := DecodeInbound([]byte(`{}`))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err=%T, want *DecodeError", err)
	}
}

func TestOutboundShapes(t *testing.T) {
	text, err := json.Marshal(NewText("hi"))
	if err != nil {
		t.Fatalf("marshal text: %v", err)
	}
	if got, want := string(text), `{"type":"text","token":"hi","last":true}`; got != want {
		t.Fatalf("text frame=%s, want %s", got, want)
	}

	ctrl, err := json.Marshal(NewSetLanguage("es-MX", "Mia-Neural"))
	if err != nil {
		t.Fatalf("marshal control: %v", err)
	}
	want := `{"type":"control","control":"set-language","language":"es-MX","voice":"Mia-Neural"}`
	if string(ctrl) != want {
		t.Fatalf("control frame=%s, want %s", ctrl, want)
	}
}
