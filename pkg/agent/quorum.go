package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/metrics"
)

// voteTimeout bounds each voter's completion call. A vote that does not
// arrive in time counts as a rejection.
const voteTimeout = 30 * time.Second

// persona is one quorum voter's reviewing stance.
type persona struct {
	name   string
	prompt string
}

var personas = []persona{
	{
		name: "cautious",
		prompt: "You are a cautious SRE reviewer. Your priority is avoiding any action " +
			"that could make an outage worse. Reject anything with unclear blast radius.",
	},
	{
		name: "pragmatic",
		prompt: "You are a pragmatic SRE reviewer. You approve actions that are routine, " +
			"reversible, and clearly tied to the observed symptom. Reject speculation.",
	},
	{
		name: "root-cause",
		prompt: "You are a root-cause focused SRE reviewer. You reject actions that only " +
			"mask symptoms without evidence the underlying cause is understood.",
	},
}

// vote is the JSON verdict each voter must return.
type vote struct {
	Approved   bool    `json:"approved"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// QuorumSettings returns the live gate configuration. It is called at
// the start of every review so runtime overrides apply immediately.
type QuorumSettings func() (enabled bool, agents int, threshold float64)

// Quorum reviews destructive actions with multiple independent model
// votes before they reach the gateway.
type Quorum struct {
	llm       Completer
	settings  QuorumSettings
	broadcast func(events.QuorumVotePayload)
}

// NewQuorum builds a quorum gate with fixed settings. broadcast may be
// nil.
func NewQuorum(llm Completer, enabled bool, agents int, threshold float64, broadcast func(events.QuorumVotePayload)) *Quorum {
	return NewDynamicQuorum(llm, func() (bool, int, float64) {
		return enabled, agents, threshold
	}, broadcast)
}

// NewDynamicQuorum builds a quorum gate whose settings are re-read per
// review, typically from the runtime config store.
func NewDynamicQuorum(llm Completer, settings QuorumSettings, broadcast func(events.QuorumVotePayload)) *Quorum {
	return &Quorum{
		llm:       llm,
		settings:  settings,
		broadcast: broadcast,
	}
}

// Enabled reports whether the gate is currently active.
func (q *Quorum) Enabled() bool {
	enabled, _, _ := q.settings()
	return enabled
}

// Review votes on a proposed action. It returns whether the action may
// proceed and, on rejection, the blocked message to surface to the
// proposing agent. Malformed and timed-out votes count as rejections.
func (q *Quorum) Review(ctx context.Context, action, reasoning string) (bool, string) {
	enabled, agents, threshold := q.settings()
	if !enabled {
		return true, ""
	}
	if agents <= 0 {
		agents = len(personas)
	}
	if threshold <= 0 {
		threshold = 0.5
	}

	votes := make([]vote, agents)
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			votes[i] = q.castVote(ctx, personas[i%len(personas)], action, reasoning)
		}(i)
	}
	wg.Wait()

	approved := 0
	var reasons []string
	for _, v := range votes {
		if v.Approved {
			approved++
		} else if v.Reasoning != "" {
			reasons = append(reasons, v.Reasoning)
		}
	}
	ratio := float64(approved) / float64(agents)
	pass := ratio > threshold

	outcome := "rejected"
	if pass {
		outcome = "approved"
	}
	metrics.QuorumVotes.WithLabelValues(outcome).Inc()
	slog.Info("Quorum vote", "action", action, "approved", approved,
		"total", agents, "outcome", outcome)

	if q.broadcast != nil {
		q.broadcast(events.QuorumVotePayload{
			Type:      events.EventTypeQuorumVote,
			Action:    action,
			Approved:  pass,
			Ratio:     ratio,
			Reasons:   strings.Join(reasons, "; "),
			Timestamp: events.Timestamp(),
		})
	}

	if pass {
		return true, ""
	}
	return false, fmt.Sprintf(
		"BLOCKED by quorum (%d%% approved, threshold >%d%% required). Reasons: %s",
		int(ratio*100), int(threshold*100), strings.Join(reasons, "; "))
}

func (q *Quorum) castVote(ctx context.Context, p persona, action, reasoning string) vote {
	voteCtx, cancel := context.WithTimeout(ctx, voteTimeout)
	defer cancel()

	msg, err := q.llm.Complete(voteCtx, ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: p.prompt + "\n\n" + votingInstructions},
			{Role: RoleUser, Content: fmt.Sprintf(
				"Proposed action: %s\nAgent's reasoning: %s\n\nVote now.", action, reasoning)},
		},
	})
	if err != nil {
		slog.Warn("Quorum voter failed, counting as reject",
			"persona", p.name, "error", err)
		return vote{Reasoning: fmt.Sprintf("%s voter unavailable", p.name)}
	}

	v, err := parseVote(msg.Content)
	if err != nil {
		slog.Warn("Quorum voter returned malformed vote, counting as reject",
			"persona", p.name, "error", err)
		return vote{Reasoning: fmt.Sprintf("%s voter returned an unreadable vote", p.name)}
	}
	return v
}

const votingInstructions = `Respond with a single JSON object and nothing else:
{"approved": true|false, "reasoning": "<one sentence>", "confidence": 0.0-1.0}`

// parseVote extracts the first JSON object from the model output.
// Models sometimes wrap the object in prose or code fences.
func parseVote(content string) (vote, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return vote{}, fmt.Errorf("no JSON object in vote")
	}
	var v vote
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return vote{}, fmt.Errorf("decode vote: %w", err)
	}
	return v, nil
}
