package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/memory"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/metrics"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// Broadcaster pushes event payloads to connected dashboard clients.
// Satisfied by events.ConnectionManager.
type Broadcaster interface {
	Broadcast(payload any)
}

// Orchestrator runs investigations: it feeds the model the tool
// surface, executes requested tools, and loops until the model answers
// without tool calls or the iteration budget runs out.
type Orchestrator struct {
	llm       Completer
	tools     []Tool
	toolIndex map[string]*Tool
	quorum    *Quorum
	quiet     *QuietHours
	gateway   *kube.Gateway
	memory    *memory.Memory
	events    Broadcaster

	// maxIterations is read per run so runtime overrides apply.
	maxIterations func() int
}

// NewOrchestrator wires the investigation loop. events and memory may
// be nil.
func NewOrchestrator(llm Completer, tools []Tool, quorum *Quorum, quiet *QuietHours,
	gateway *kube.Gateway, mem *memory.Memory, broadcaster Broadcaster, maxIterations func() int) *Orchestrator {
	index := make(map[string]*Tool, len(tools))
	for i := range tools {
		index[tools[i].Name] = &tools[i]
	}
	return &Orchestrator{
		llm:           llm,
		tools:         tools,
		toolIndex:     index,
		quorum:        quorum,
		quiet:         quiet,
		gateway:       gateway,
		memory:        mem,
		events:        broadcaster,
		maxIterations: maxIterations,
	}
}

// Scan runs a full cluster health sweep.
func (o *Orchestrator) Scan(ctx context.Context, trigger string) models.InvestigationResult {
	start := time.Now()
	result := o.run(ctx, scanPrompt, "scan-"+trigger)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	metrics.ScansTotal.WithLabelValues(outcome).Inc()

	if o.events != nil {
		o.events.Broadcast(events.ScanCompletePayload{
			Type:      events.EventTypeScanComplete,
			Success:   result.Success,
			Summary:   result.Summary,
			Trigger:   trigger,
			Timestamp: events.Timestamp(),
		})
	}
	return result
}

// Investigate runs a focused investigation of one reported issue.
func (o *Orchestrator) Investigate(ctx context.Context, description, threadID string) models.InvestigationResult {
	prompt := "Investigate this issue:\n\n" + description
	if o.memory != nil && o.memory.Available() {
		if matches, err := o.memory.Recall(ctx, description, 3); err == nil && len(matches) > 0 {
			var b strings.Builder
			b.WriteString("\n\nSimilar past incidents:\n")
			for _, m := range matches {
				fmt.Fprintf(&b, "- %s => %s (similarity %.2f)\n", m.Issue, m.Resolution, m.Score)
			}
			prompt += b.String()
		}
	}
	return o.run(ctx, prompt, threadID)
}

func (o *Orchestrator) run(ctx context.Context, userPrompt, threadID string) models.InvestigationResult {
	started := time.Now()
	investigationID := "inv-" + uuid.NewString()[:8]
	quietActive := o.quiet != nil && o.quiet.Active(started)
	system := systemPrompt
	if quietActive {
		system = quietSystemPrompt
	}

	if o.events != nil {
		o.events.Broadcast(events.InvestigationStartedPayload{
			Type:            events.EventTypeInvestigationStarted,
			InvestigationID: investigationID,
			ThreadID:        threadID,
			Description:     firstLine(userPrompt),
			Timestamp:       events.Timestamp(),
		})
	}
	slog.Info("Investigation started", "investigation_id", investigationID,
		"thread_id", threadID, "quiet_hours", quietActive)

	messages := []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: userPrompt},
	}
	maxIter := o.maxIterations()
	if maxIter < 2 {
		maxIter = 2
	}

	var lastContent string
	for iteration := 1; iteration <= maxIter; iteration++ {
		metrics.AgentIterations.Inc()

		toolDefs := o.toolDefs()
		if iteration == maxIter-1 {
			// Penultimate iteration: force a final report.
			toolDefs = nil
			messages = append(messages, Message{Role: RoleUser, Content: summarizeInstruction})
		}

		msg, err := o.llm.Complete(ctx, ChatRequest{Messages: messages, Tools: toolDefs})
		if err != nil {
			slog.Error("Investigation failed", "thread_id", threadID, "iteration", iteration, "error", err)
			return o.finish(threadID, investigationID, started, models.InvestigationResult{
				Success:   false,
				Error:     fmt.Sprintf("LLM call failed at iteration %d: %v", iteration, err),
				Timestamp: time.Now().UTC(),
			})
		}
		messages = append(messages, *msg)

		if len(msg.ToolCalls) == 0 {
			rl := o.gateway.RateLimitStatus(ctx)
			return o.finish(threadID, investigationID, started, models.InvestigationResult{
				Success:   true,
				Summary:   msg.Content,
				AuditLog:  o.gateway.AuditLog(ctx, 10),
				RateLimit: &rl,
				Timestamp: time.Now().UTC(),
			})
		}
		lastContent = msg.Content

		toolNames := make([]string, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			toolNames = append(toolNames, tc.Function.Name)
		}
		if o.events != nil {
			o.events.Broadcast(events.InvestigationStepPayload{
				Type:      events.EventTypeInvestigationStep,
				ThreadID:  threadID,
				Iteration: iteration,
				Tools:     toolNames,
				Timestamp: events.Timestamp(),
			})
		}
		slog.Debug("Investigation step", "thread_id", threadID,
			"iteration", iteration, "tools", toolNames)

		for _, tc := range msg.ToolCalls {
			messages = append(messages, Message{
				Role:       RoleTool,
				ToolCallID: tc.ID,
				Content:    o.callTool(ctx, tc, quietActive),
			})
		}
	}

	// Budget exhausted without a final answer.
	summary := lastContent
	if summary == "" {
		summary = "investigation ended at the iteration limit without a final report"
	}
	rl := o.gateway.RateLimitStatus(ctx)
	return o.finish(threadID, investigationID, started, models.InvestigationResult{
		Success:   true,
		Summary:   summary,
		AuditLog:  o.gateway.AuditLog(ctx, 10),
		RateLimit: &rl,
		Timestamp: time.Now().UTC(),
	})
}

// callTool executes one tool call and renders its result for the model.
// Tool failures are reported back to the model as text so the loop can
// adapt instead of aborting.
func (o *Orchestrator) callTool(ctx context.Context, tc ToolCall, quietActive bool) string {
	tool, ok := o.toolIndex[tc.Function.Name]
	if !ok {
		return fmt.Sprintf("unknown tool %q", tc.Function.Name)
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err)
		}
	}

	if tool.Destructive {
		if quietActive {
			return "refused: quiet hours are in effect, observation only"
		}
		if o.quorum != nil {
			reason := argString(args, "reason")
			approved, blocked := o.quorum.Review(ctx, describeCall(tc.Function.Name, args), reason)
			if !approved {
				return blocked
			}
		}
	}

	result, err := tool.Run(ctx, args)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// finish is the single exit point, so the completed event is always
// broadcast and every result carries its id and duration.
func (o *Orchestrator) finish(threadID, investigationID string, started time.Time,
	result models.InvestigationResult) models.InvestigationResult {
	result.InvestigationID = investigationID
	result.DurationSeconds = time.Since(started).Seconds()
	if o.events != nil {
		o.events.Broadcast(events.InvestigationCompletedPayload{
			Type:            events.EventTypeInvestigationCompleted,
			InvestigationID: investigationID,
			ThreadID:        threadID,
			Success:         result.Success,
			Summary:         result.Summary,
			Error:           result.Error,
			DurationSeconds: result.DurationSeconds,
			Timestamp:       events.Timestamp(),
		})
	}
	slog.Info("Investigation completed", "investigation_id", investigationID,
		"thread_id", threadID, "success", result.Success,
		"duration_seconds", result.DurationSeconds)
	return result
}

func (o *Orchestrator) toolDefs() []ToolDef {
	defs := make([]ToolDef, 0, len(o.tools))
	for _, tool := range o.tools {
		defs = append(defs, ToolDef{
			Type: "function",
			Function: FunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return defs
}

func describeCall(name string, args map[string]any) string {
	target := argString(args, "resource")
	if ns := argString(args, "namespace"); ns != "" {
		target = ns + "/" + target
	}
	if target == "" || target == "/" {
		return name
	}
	return name + " on " + target
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
