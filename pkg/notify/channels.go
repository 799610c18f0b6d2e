package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// severityColors map guardian severities to attachment colors.
var severityColors = map[string]string{
	models.SeverityCritical: "#d32f2f",
	models.SeverityWarning:  "#f9a825",
	models.SeverityInfo:     "#2e7d32",
}

type slackChannel struct {
	webhookURL  string
	channelName string
}

func newSlackChannel(webhookURL, channelName string) *slackChannel {
	return &slackChannel{webhookURL: webhookURL, channelName: channelName}
}

func (c *slackChannel) Name() string        { return "slack" }
func (c *slackChannel) MinSeverity() string { return models.SeverityInfo }

func (c *slackChannel) Send(ctx context.Context, n Notification) error {
	attachment := slack.Attachment{
		Color:      severityColors[n.Severity],
		Title:      n.Title,
		Text:       n.Message,
		Footer:     "cluster-guardian",
		Ts:         json.Number(fmt.Sprintf("%d", time.Now().Unix())),
	}
	if n.Link != "" {
		attachment.TitleLink = n.Link
	}
	msg := &slack.WebhookMessage{
		Channel:     c.channelName,
		Attachments: []slack.Attachment{attachment},
	}
	return slack.PostWebhookContext(ctx, c.webhookURL, msg)
}

type discordChannel struct {
	webhookURL string
	httpClient *http.Client
}

func newDiscordChannel(webhookURL string) *discordChannel {
	return &discordChannel{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *discordChannel) Name() string        { return "discord" }
func (c *discordChannel) MinSeverity() string { return models.SeverityWarning }

// discordColors are decimal RGB values for embeds.
var discordColors = map[string]int{
	models.SeverityCritical: 0xd32f2f,
	models.SeverityWarning:  0xf9a825,
	models.SeverityInfo:     0x2e7d32,
}

func (c *discordChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       n.Title,
			"description": n.Message,
			"color":       discordColors[n.Severity],
		}},
	}
	return postJSON(ctx, c.httpClient, http.MethodPost, c.webhookURL, nil, payload)
}

type teamsChannel struct {
	webhookURL string
	httpClient *http.Client
}

func newTeamsChannel(webhookURL string) *teamsChannel {
	return &teamsChannel{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *teamsChannel) Name() string        { return "teams" }
func (c *teamsChannel) MinSeverity() string { return models.SeverityWarning }

func (c *teamsChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"@type":      "MessageCard",
		"@context":   "https://schema.org/extensions",
		"themeColor": strings.TrimPrefix(severityColors[n.Severity], "#"),
		"summary":    n.Title,
		"sections": []map[string]any{{
			"activityTitle": n.Title,
			"text":          n.Message,
		}},
	}
	return postJSON(ctx, c.httpClient, http.MethodPost, c.webhookURL, nil, payload)
}

type pagerDutyChannel struct {
	routingKey string
	httpClient *http.Client
}

func newPagerDutyChannel(routingKey string) *pagerDutyChannel {
	return &pagerDutyChannel{
		routingKey: routingKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *pagerDutyChannel) Name() string { return "pagerduty" }

// Only critical issues page anyone.
func (c *pagerDutyChannel) MinSeverity() string { return models.SeverityCritical }

func (c *pagerDutyChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  n.Title + ": " + n.Message,
			"source":   "cluster-guardian",
			"severity": "critical",
		},
	}
	return postJSON(ctx, c.httpClient, http.MethodPost,
		"https://events.pagerduty.com/v2/enqueue", nil, payload)
}

type customWebhookChannel struct {
	url        string
	method     string
	headers    map[string]string
	httpClient *http.Client
}

// newCustomWebhookChannel accepts headers as "Key: Value" pairs joined
// by commas.
func newCustomWebhookChannel(url, method, rawHeaders string) *customWebhookChannel {
	headers := map[string]string{}
	for _, pair := range strings.Split(rawHeaders, ",") {
		if k, v, ok := strings.Cut(pair, ":"); ok {
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if method == "" {
		method = http.MethodPost
	}
	return &customWebhookChannel{
		url:        url,
		method:     method,
		headers:    headers,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *customWebhookChannel) Name() string        { return "custom_webhook" }
func (c *customWebhookChannel) MinSeverity() string { return models.SeverityInfo }

func (c *customWebhookChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"title":     n.Title,
		"message":   n.Message,
		"severity":  n.Severity,
		"link":      n.Link,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, c.httpClient, c.method, c.url, c.headers, payload)
}

func postJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
