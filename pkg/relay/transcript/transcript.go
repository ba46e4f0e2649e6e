// Package transcript renders a conversation history into the plain-text
// form used for prompts and post-call analysis.
package transcript

import (
	"strings"

	"github.com/Vipr728/Cascadia/pkg/relay/store"
)

// Build linearizes turns into "Human: ..." / "Assistant: ..." lines joined
// by newlines, in history order. Turns with any other role are skipped; the
// system instruction is never part of the transcript.
func Build(turns []store.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case store.RoleUser:
			lines = append(lines, "Human: "+turn.Text)
		case store.RoleAssistant:
			lines = append(lines, "Assistant: "+turn.Text)
		}
	}
	return strings.Join(lines, "\n")
}
