package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

type fakeChannel struct {
	name     string
	min      string
	err      error
	received atomic.Int32
}

func (f *fakeChannel) Name() string        { return f.name }
func (f *fakeChannel) MinSeverity() string { return f.min }
func (f *fakeChannel) Send(context.Context, Notification) error {
	f.received.Add(1)
	return f.err
}

func TestNotifyAllRoutesBySeverity(t *testing.T) {
	chat := &fakeChannel{name: "chat", min: models.SeverityInfo}
	warnOnly := &fakeChannel{name: "warn_only", min: models.SeverityWarning}
	pager := &fakeChannel{name: "pager", min: models.SeverityCritical}
	hub := NewHubWithChannels(chat, warnOnly, pager)

	results := hub.NotifyAll(context.Background(), Notification{
		Title: "disk filling", Severity: models.SeverityWarning,
	})

	assert.Equal(t, map[string]bool{"chat": true, "warn_only": true}, results)
	assert.Equal(t, int32(1), chat.received.Load())
	assert.Equal(t, int32(0), pager.received.Load())

	results = hub.NotifyAll(context.Background(), Notification{
		Title: "node down", Severity: models.SeverityCritical,
	})
	assert.Len(t, results, 3)
	assert.Equal(t, int32(1), pager.received.Load())
}

func TestNotifyAllReportsFailuresPerChannel(t *testing.T) {
	good := &fakeChannel{name: "good", min: models.SeverityInfo}
	bad := &fakeChannel{name: "bad", min: models.SeverityInfo, err: errors.New("boom")}
	hub := NewHubWithChannels(good, bad)

	results := hub.NotifyAll(context.Background(), Notification{Title: "t", Severity: models.SeverityInfo})
	assert.True(t, results["good"])
	assert.False(t, results["bad"])
}

func TestNotifyAllDefaultsSeverityToInfo(t *testing.T) {
	pager := &fakeChannel{name: "pager", min: models.SeverityCritical}
	hub := NewHubWithChannels(pager)

	results := hub.NotifyAll(context.Background(), Notification{Title: "t"})
	assert.Empty(t, results)
}

func TestDiscordChannelPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := newDiscordChannel(srv.URL)
	err := ch.Send(context.Background(), Notification{
		Title: "node down", Message: "worker-2 NotReady", Severity: models.SeverityCritical,
	})
	require.NoError(t, err)

	embeds := got["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "node down", embed["title"])
	assert.Equal(t, float64(0xd32f2f), embed["color"])
}

func TestCustomWebhookHeadersAndMethod(t *testing.T) {
	var gotMethod, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	ch := newCustomWebhookChannel(srv.URL, http.MethodPut, "Authorization: Bearer tok, X-Env: prod")
	err := ch.Send(context.Background(), Notification{Title: "t", Severity: models.SeverityInfo})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestNewHubBuildsOnlyConfiguredChannels(t *testing.T) {
	hub := NewHub(&config.Settings{
		SlackWebhookURL:   "https://hooks.slack.invalid/x",
		DiscordWebhookURL: "https://discord.invalid/x",
	})
	assert.True(t, hub.Enabled())
	assert.ElementsMatch(t, []string{"slack", "discord"}, hub.ChannelNames())

	assert.False(t, NewHub(&config.Settings{}).Enabled())
}
