package analysis

import (
	"encoding/json"
	"time"
)

// Record is the per-call analysis artifact.
type Record struct {
	CallSid    string          `json:"callSid"`
	CreatedAt  time.Time       `json:"createdAt"`
	Transcript string          `json:"transcript"`
	Analysis   json.RawMessage `json:"analysis"`
}

// Pointer is the "latest" artifact; it only ever names a record that was
// fully written first.
type Pointer struct {
	CallSid   string    `json:"callSid"`
	CreatedAt time.Time `json:"createdAt"`
}

// Weakness is one entry of the analysis result's weaknesses list. The relay
// treats the rest of the result as opaque.
type Weakness struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Focus       string `json:"focus"`
	Severity    string `json:"severity"`
}

// Weaknesses extracts the weaknesses list from a record's analysis payload.
// Missing or malformed payloads yield an empty list.
func (r Record) Weaknesses() []Weakness {
	var payload struct {
		Weaknesses []Weakness `json:"weaknesses"`
	}
	if err := json.Unmarshal(r.Analysis, &payload); err != nil {
		return nil
	}
	return payload.Weaknesses
}
