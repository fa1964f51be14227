package engine

import (
	"fmt"
	"strings"
)

const ruleTruncateLen = 80

// formatInjection renders the human-readable block the caller injects
// into its prompt context: attention warning, pain list, win list and
// a hot-tag note, in that order. Empty sections are omitted.
func formatInjection(r *Result) string {
	var b strings.Builder

	if r.Attention != nil {
		fmt.Fprintf(&b, "ATTENTION: %s\n", r.Attention.Warning)
	}

	if len(r.PainMemories) > 0 {
		b.WriteString("Relevant lessons:\n")
		for i, sm := range r.PainMemories {
			line := sm.Memory.Title
			if sm.Memory.Rule != "" {
				line += ": " + truncate(sm.Memory.Rule, ruleTruncateLen)
			}
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, sm.Memory.Type, line)
		}
	}

	if len(r.WinMemories) > 0 {
		b.WriteString("Wins worth repeating:\n")
		for i, sm := range r.WinMemories {
			line := sm.Memory.Title
			if sm.Memory.Rule != "" {
				line += ": " + truncate(sm.Memory.Rule, ruleTruncateLen)
			}
			fmt.Fprintf(&b, "  %d. %s\n", i+1, line)
		}
	}

	if len(r.HotTags) > 0 {
		fmt.Fprintf(&b, "Recurring this session: %s keeps coming up without resolution.\n",
			strings.Join(r.HotTags, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// truncate caps a rule to maxLen runes, never splitting a multi-byte
// character.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
