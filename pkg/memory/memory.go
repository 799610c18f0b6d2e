// Package memory gives the agent long-term recall: resolved issues are
// stored with an embedding and retrieved by cosine similarity when a
// similar issue appears later.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "guardian:memory:"
	// DefaultTopK is the recall depth when the caller does not specify.
	DefaultTopK = 5
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Entry is one remembered issue with its resolution.
type Entry struct {
	ID         string            `json:"id"`
	Issue      string            `json:"issue"`
	Resolution string            `json:"resolution"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Match is a recalled entry with its similarity score in [0, 1].
type Match struct {
	Entry
	Score float64 `json:"score"`
}

// Memory stores entries as Redis hashes and searches them in process.
// The store degrades to a no-op without Redis or an embedder.
type Memory struct {
	rdb      *redis.Client
	embedder Embedder
}

// New creates a memory store. Either dependency may be nil.
func New(rdb *redis.Client, embedder Embedder) *Memory {
	return &Memory{rdb: rdb, embedder: embedder}
}

// Available reports whether the memory can store and recall.
func (m *Memory) Available() bool {
	return m.rdb != nil && m.embedder != nil
}

// Store remembers a resolved issue and returns the entry id.
func (m *Memory) Store(ctx context.Context, issue, resolution string, metadata map[string]string) (string, error) {
	if !m.Available() {
		return "", fmt.Errorf("memory unavailable")
	}
	vector, err := m.embedder.Embed(ctx, issue)
	if err != nil {
		return "", fmt.Errorf("embed issue: %w", err)
	}
	rawVector, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = m.rdb.HSet(ctx, keyPrefix+id, map[string]any{
		"issue":      issue,
		"resolution": resolution,
		"embedding":  rawVector,
		"metadata":   rawMeta,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("store memory entry: %w", err)
	}
	slog.Debug("Stored memory entry", "id", id)
	return id, nil
}

// Recall returns the topK most similar past issues, best first.
func (m *Memory) Recall(ctx context.Context, issue string, topK int) ([]Match, error) {
	if !m.Available() {
		return nil, fmt.Errorf("memory unavailable")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	query, err := m.embedder.Embed(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var matches []Match
	iter := m.rdb.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := m.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		var vector []float32
		if err := json.Unmarshal([]byte(fields["embedding"]), &vector); err != nil {
			slog.Warn("Skipping memory entry with bad embedding", "key", key)
			continue
		}
		score := cosine(query, vector)
		entry := Entry{
			ID:         key[len(keyPrefix):],
			Issue:      fields["issue"],
			Resolution: fields["resolution"],
		}
		if raw := fields["metadata"]; raw != "" {
			_ = json.Unmarshal([]byte(raw), &entry.Metadata)
		}
		if ts, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
			entry.CreatedAt = ts
		}
		matches = append(matches, Match{Entry: entry, Score: score})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan memory entries: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
