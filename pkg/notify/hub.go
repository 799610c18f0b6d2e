// Package notify fans incident notifications out to the configured
// channels: Slack, Discord, Microsoft Teams, PagerDuty, and a custom
// webhook. Delivery is best effort; a failing channel never blocks the
// others or the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// Notification is one outbound message.
type Notification struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	// Link optionally points at a dashboard or PR.
	Link string `json:"link,omitempty"`
}

// Channel delivers notifications to one destination.
type Channel interface {
	Name() string
	// Send delivers the notification. Implementations must respect ctx.
	Send(ctx context.Context, n Notification) error
	// MinSeverity is the lowest severity the channel receives.
	MinSeverity() string
}

// Hub routes notifications to channels by severity.
type Hub struct {
	channels []Channel
}

// NewHub builds a hub from configuration. Unconfigured channels are
// omitted.
func NewHub(cfg *config.Settings) *Hub {
	h := &Hub{}
	if cfg.SlackWebhookURL != "" {
		h.channels = append(h.channels, newSlackChannel(cfg.SlackWebhookURL, cfg.NotificationChannel))
	}
	if cfg.DiscordWebhookURL != "" {
		h.channels = append(h.channels, newDiscordChannel(cfg.DiscordWebhookURL))
	}
	if cfg.TeamsWebhookURL != "" {
		h.channels = append(h.channels, newTeamsChannel(cfg.TeamsWebhookURL))
	}
	if cfg.PagerDutyIntegrationKey != "" {
		h.channels = append(h.channels, newPagerDutyChannel(cfg.PagerDutyIntegrationKey))
	}
	if cfg.CustomWebhookURL != "" {
		h.channels = append(h.channels, newCustomWebhookChannel(
			cfg.CustomWebhookURL, cfg.CustomWebhookMethod, cfg.CustomWebhookHeaders))
	}
	return h
}

// NewHubWithChannels wires explicit channels. Used by tests.
func NewHubWithChannels(channels ...Channel) *Hub {
	return &Hub{channels: channels}
}

// Enabled reports whether any channel is configured.
func (h *Hub) Enabled() bool {
	return len(h.channels) > 0
}

// ChannelNames lists configured channels.
func (h *Hub) ChannelNames() []string {
	names := make([]string, 0, len(h.channels))
	for _, c := range h.channels {
		names = append(names, c.Name())
	}
	return names
}

// NotifyAll delivers the notification to every channel whose severity
// floor it meets, concurrently, and returns per-channel success.
func (h *Hub) NotifyAll(ctx context.Context, n Notification) map[string]bool {
	if n.Severity == "" {
		n.Severity = models.SeverityInfo
	}
	results := make(map[string]bool, len(h.channels))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ch := range h.channels {
		if !models.SeverityAtLeast(n.Severity, ch.MinSeverity()) {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := ch.Send(sendCtx, n)
			if err != nil {
				slog.Warn("Notification delivery failed", "channel", ch.Name(), "error", err)
			}
			mu.Lock()
			results[ch.Name()] = err == nil
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return results
}

// Notify is the fire-and-forget variant used from monitor callbacks.
func (h *Hub) Notify(ctx context.Context, n Notification) {
	go h.NotifyAll(context.WithoutCancel(ctx), n)
}
