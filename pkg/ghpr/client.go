// Package ghpr opens remediation pull requests on GitHub when the agent
// concludes that a fix belongs in source control.
package ghpr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const apiBase = "https://api.github.com"

// Client creates branches, commits, and pull requests in one repository.
type Client struct {
	httpClient *http.Client
	token      string
	owner      string
	repo       string
	baseBranch string
}

// NewClient creates a GitHub client for the configured repository. An
// empty token, owner, or repo disables PR creation.
func NewClient(token, owner, repo, baseBranch string) *Client {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		owner:      owner,
		repo:       repo,
		baseBranch: baseBranch,
	}
}

// Enabled reports whether PR creation is configured.
func (c *Client) Enabled() bool {
	return c.token != "" && c.owner != "" && c.repo != ""
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GitHub returned HTTP %d for %s %s", resp.StatusCode, method, path)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// baseSHA resolves the head commit of the base branch.
func (c *Client) baseSHA(ctx context.Context) (string, error) {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", c.owner, c.repo, c.baseBranch)
	if err := c.do(ctx, http.MethodGet, path, nil, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// CreateBranch creates a branch off the base branch head.
func (c *Client) CreateBranch(ctx context.Context, branch string) error {
	sha, err := c.baseSHA(ctx)
	if err != nil {
		return fmt.Errorf("resolve base branch: %w", err)
	}
	payload := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	path := fmt.Sprintf("/repos/%s/%s/git/refs", c.owner, c.repo)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// CommitFile creates or updates one file on a branch.
func (c *Client) CommitFile(ctx context.Context, branch, filePath, message, content string) error {
	contentsPath := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, filePath)

	// Updating an existing file requires its blob SHA.
	var existing struct {
		SHA string `json:"sha"`
	}
	_ = c.do(ctx, http.MethodGet, contentsPath+"?ref="+branch, nil, &existing)

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	return c.do(ctx, http.MethodPut, contentsPath, payload, nil)
}

// CreatePR opens a pull request from branch into the base branch and
// returns its URL.
func (c *Client) CreatePR(ctx context.Context, branch, title, body string) (string, error) {
	payload := map[string]string{
		"title": title,
		"head":  branch,
		"base":  c.baseBranch,
		"body":  body,
	}
	var pr struct {
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls", c.owner, c.repo)
	if err := c.do(ctx, http.MethodPost, path, payload, &pr); err != nil {
		return "", err
	}
	return pr.HTMLURL, nil
}

// CreateRemediationPR creates a branch, commits the given files, and
// opens a PR. Returns the PR URL.
func (c *Client) CreateRemediationPR(ctx context.Context, branch, title, body string, files map[string]string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("github not configured")
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no files to commit")
	}
	if err := c.CreateBranch(ctx, branch); err != nil {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}
	for path, content := range files {
		if err := c.CommitFile(ctx, branch, path, title, content); err != nil {
			return "", fmt.Errorf("commit %s: %w", path, err)
		}
	}
	url, err := c.CreatePR(ctx, branch, title, body)
	if err != nil {
		return "", fmt.Errorf("open pull request: %w", err)
	}
	return url, nil
}
