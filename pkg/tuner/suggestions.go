package tuner

import (
	"fmt"
	"sort"
)

// Suggestion is a human-readable improvement proposal.
type Suggestion struct {
	Type        string `json:"type"`
	Target      string `json:"target"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// SuggestImprovements derives suggestions from the accumulated
// patterns and check statistics:
//   - new_playbook for keys at or past the recurrence threshold, high
//     priority at twice the threshold
//   - enhanced_monitoring for namespaces accumulating five or more
//     issues across patterns
//   - tune_threshold for checks whose findings are false positives more
//     than half the time, once five samples exist
func (t *Tuner) SuggestImprovements(threshold int) []Suggestion {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Suggestion

	namespaceTotals := map[string]int{}
	for _, p := range t.patterns {
		if p.Namespace != "" {
			namespaceTotals[p.Namespace] += p.Count
		}
		if p.Count < threshold {
			continue
		}
		priority := "medium"
		if p.Count >= 2*threshold {
			priority = "high"
		}
		out = append(out, Suggestion{
			Type:     "new_playbook",
			Target:   p.Key,
			Priority: priority,
			Description: fmt.Sprintf(
				"Issue %q has recurred %d times; a dedicated remediation playbook would resolve it without a full investigation.",
				p.Key, p.Count),
		})
	}

	for ns, total := range namespaceTotals {
		if total < 5 {
			continue
		}
		out = append(out, Suggestion{
			Type:     "enhanced_monitoring",
			Target:   ns,
			Priority: "medium",
			Description: fmt.Sprintf(
				"Namespace %q has accumulated %d issues; consider adding namespace-specific alerts or a deep health check.",
				ns, total),
		})
	}

	for check, s := range t.checks {
		if s.total < 5 {
			continue
		}
		if float64(s.falsePositives)/float64(s.total) <= 0.5 {
			continue
		}
		out = append(out, Suggestion{
			Type:     "tune_threshold",
			Target:   check,
			Priority: "low",
			Description: fmt.Sprintf(
				"Check %q produced %d false positives out of %d findings; its threshold is probably too sensitive.",
				check, s.falsePositives, s.total),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Target < out[j].Target
	})
	return out
}
