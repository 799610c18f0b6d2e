// Package playbook matches anomalies to predefined remediation
// procedures. A matched playbook is rendered as structured instructions
// for the agent, which still executes every step through the gateway.
package playbook

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// defaultMaxAutoExecutions bounds how often one playbook is applied
// automatically before a human should look at the recurring issue.
const defaultMaxAutoExecutions = 3

// Match operators.
const (
	OpEquals   = "equals"
	OpContains = "contains"
	OpRegex    = "regex"
)

// MatchRule tests one anomaly field. All rules of a playbook must hold.
type MatchRule struct {
	// Field is one of "source", "severity", "namespace", "message".
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// Step is one remediation step with templated arguments. Templates use
// {{namespace}}, {{resource}}, {{pod}}, {{name}} from the anomaly.
type Step struct {
	Action string            `json:"action"`
	Args   map[string]string `json:"args,omitempty"`
	Note   string            `json:"note,omitempty"`
}

// Playbook is a named remediation procedure.
type Playbook struct {
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Match             []MatchRule `json:"match"`
	Steps             []Step      `json:"steps"`
	MaxAutoExecutions int         `json:"max_auto_executions"`
}

// Registry holds playbooks and their execution counts.
type Registry struct {
	mu         sync.Mutex
	playbooks  []Playbook
	executions map[string]int
}

// NewRegistry creates a registry preloaded with the built-in playbooks.
func NewRegistry() *Registry {
	return &Registry{
		playbooks:  builtins(),
		executions: make(map[string]int),
	}
}

// Playbooks returns all registered playbooks.
func (r *Registry) Playbooks() []Playbook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Playbook, len(r.playbooks))
	copy(out, r.playbooks)
	return out
}

// Find returns the first playbook matching the anomaly that has auto
// executions left, or nil.
func (r *Registry) Find(a models.Anomaly) *Playbook {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.playbooks {
		pb := &r.playbooks[i]
		if !matches(pb.Match, a) {
			continue
		}
		max := pb.MaxAutoExecutions
		if max <= 0 {
			max = defaultMaxAutoExecutions
		}
		if r.executions[pb.Name] >= max {
			continue
		}
		found := *pb
		return &found
	}
	return nil
}

// RecordExecution counts one automatic application of a playbook and
// returns the remaining budget.
func (r *Registry) RecordExecution(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[name]++
	for i := range r.playbooks {
		if r.playbooks[i].Name == name {
			max := r.playbooks[i].MaxAutoExecutions
			if max <= 0 {
				max = defaultMaxAutoExecutions
			}
			return max - r.executions[name]
		}
	}
	return 0
}

// Render expands a playbook into agent instructions with the anomaly's
// values substituted into step arguments.
func Render(pb *Playbook, a models.Anomaly) string {
	vars := templateVars(a)
	var b strings.Builder
	fmt.Fprintf(&b, "Playbook %q applies: %s\n", pb.Name, pb.Description)
	b.WriteString("Follow these steps, verifying the outcome of each before continuing:\n")
	for i, step := range pb.Steps {
		fmt.Fprintf(&b, "%d. %s", i+1, step.Action)
		if len(step.Args) > 0 {
			b.WriteString(" with")
			for k, v := range step.Args {
				fmt.Fprintf(&b, " %s=%s", k, expand(v, vars))
			}
		}
		if step.Note != "" {
			fmt.Fprintf(&b, " (%s)", expand(step.Note, vars))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func matches(rules []MatchRule, a models.Anomaly) bool {
	for _, rule := range rules {
		var field string
		switch rule.Field {
		case "source":
			field = a.Source
		case "severity":
			field = a.Severity
		case "namespace":
			field = a.Namespace
		case "message":
			field = a.Message
		default:
			return false
		}
		switch rule.Op {
		case OpEquals:
			if field != rule.Value {
				return false
			}
		case OpContains:
			if !strings.Contains(strings.ToLower(field), strings.ToLower(rule.Value)) {
				return false
			}
		case OpRegex:
			re, err := regexp.Compile(rule.Value)
			if err != nil || !re.MatchString(field) {
				return false
			}
		default:
			return false
		}
	}
	return len(rules) > 0
}

func templateVars(a models.Anomaly) map[string]string {
	vars := map[string]string{
		"namespace": a.Namespace,
		"resource":  a.Resource,
		"message":   a.Message,
		"source":    a.Source,
	}
	name := a.Resource
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	vars["name"] = name
	vars["pod"] = name
	return vars
}

var templatePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

func expand(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(m string) string {
		key := templatePattern.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
