// Package devloop talks to the dev controller that turns recurring
// issues into long-term fix goals worked by a development pipeline.
package devloop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the dev controller HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a dev controller client. baseURL may be empty to
// disable escalation.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether a dev controller is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Goal is a long-term fix request.
type Goal struct {
	ID                 string   `json:"id,omitempty"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Priority           string   `json:"priority,omitempty"`
	Status             string   `json:"status,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty"`
}

// CreateGoal submits a new goal and returns it with its assigned id.
func (c *Client) CreateGoal(ctx context.Context, goal Goal) (*Goal, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("dev controller not configured")
	}
	body, err := json.Marshal(goal)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/goals", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit goal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("dev controller returned HTTP %d", resp.StatusCode)
	}

	var created Goal
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode goal: %w", err)
	}
	return &created, nil
}

// Goals lists goals, optionally filtered by status.
func (c *Client) Goals(ctx context.Context, status string) ([]Goal, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("dev controller not configured")
	}
	url := c.baseURL + "/api/goals"
	if status != "" {
		url += "?status=" + status
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dev controller returned HTTP %d", resp.StatusCode)
	}
	var goals []Goal
	if err := json.NewDecoder(resp.Body).Decode(&goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	return goals, nil
}

// GoalStatus fetches one goal by id.
func (c *Client) GoalStatus(ctx context.Context, id string) (*Goal, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("dev controller not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/goals/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch goal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("goal %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dev controller returned HTTP %d", resp.StatusCode)
	}
	var goal Goal
	if err := json.NewDecoder(resp.Body).Decode(&goal); err != nil {
		return nil, fmt.Errorf("decode goal: %w", err)
	}
	return &goal, nil
}
