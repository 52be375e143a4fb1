// internal/engine/scoring/tokens.go
package scoring

import "strings"

// tokenize splits text into lowercase alphanumeric tokens of at least minLen
// characters.
func tokenize(text string, minLen int) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() >= minLen {
			tokens = append(tokens, strings.ToLower(b.String()))
		}
		b.Reset()
	}

	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// promptTokens returns the first promptTokenMax tokens of a screener prompt.
func promptTokens(prompt string) []string {
	tokens := tokenize(prompt, promptTokenMinLen)
	if len(tokens) > promptTokenMax {
		tokens = tokens[:promptTokenMax]
	}
	return tokens
}

// dedupeSkills merges skill lists case-insensitively, preserving first-seen
// order and original casing.
func dedupeSkills(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

// missingFrom returns the entries of want absent from the effective skill set
// (case-insensitive), preserving want's order.
func missingFrom(want, have []string) []string {
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var missing []string
	for _, s := range want {
		if !set[strings.ToLower(strings.TrimSpace(s))] {
			missing = append(missing, s)
		}
	}
	return missing
}
