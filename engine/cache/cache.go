// Package cache keys and stores provider responses so that identical
// requests can be replayed without an upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/taskgate/taskgate/engine/task"
	"github.com/taskgate/taskgate/pkg/logger"
)

// Entry is the payload stored against one cache key. Content mirrors the
// gateway response body so a hit can be returned verbatim.
type Entry struct {
	Model        string         `json:"model"`
	Content      any            `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CapturedData map[string]any `json:"capturedData,omitempty"`
}

// Record is a stored entry together with its provenance columns.
type Record struct {
	CacheKey     string
	ProviderName string
	ModelName    string
	TaskID       string
	Response     Entry
	ExpiresAt    time.Time
}

// Hit is a cache read that is still live.
type Hit struct {
	ProviderName        string
	ModelName           string
	Response            Entry
	TTLRemainingSeconds int
}

// Repository is the persistence surface the service runs on. Lookups
// return (nil, nil) on miss.
type Repository interface {
	Get(ctx context.Context, cacheKey string) (*Record, error)
	Put(ctx context.Context, record *Record) error
}

// Key derives the deterministic cache key for one rendered request. The
// hash covers provider, model when known, task identity, the exact
// rendered segments, and the payload fingerprint.
func Key(prompt *task.RenderedPrompt, provider, model, taskID, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	if model != "" {
		h.Write([]byte(model))
	}
	h.Write([]byte(taskID))
	segments, _ := json.Marshal(prompt.Segments)
	h.Write(segments)
	if fingerprint != "" {
		h.Write([]byte(fingerprint))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint captures the pre-render request payload, so two requests
// that happen to render identical text still cache separately when their
// inputs differ.
func Fingerprint(inputs map[string]any, toggles task.Selections) string {
	payload, _ := json.Marshal(map[string]any{
		"inputs":  inputs,
		"toggles": toggles,
	})
	return string(payload)
}

// Service wraps a Repository with expiry handling. Cache faults never
// fail the request; they degrade to a miss or a skipped write.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Lookup returns a live hit or nil. Entries whose expiry is not strictly
// in the future are treated as misses.
func (s *Service) Lookup(ctx context.Context, cacheKey string) *Hit {
	record, err := s.repo.Get(ctx, cacheKey)
	if err != nil {
		logger.FromContext(ctx).Warn("AI cache lookup failed", "error", err)
		return nil
	}
	if record == nil {
		return nil
	}

	now := s.now()
	if !record.ExpiresAt.After(now) {
		return nil
	}

	remaining := int(record.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &Hit{
		ProviderName:        record.ProviderName,
		ModelName:           record.ModelName,
		Response:            record.Response,
		TTLRemainingSeconds: remaining,
	}
}

// Store upserts an entry with a TTL-derived expiry. A non-positive TTL
// skips the write entirely.
func (s *Service) Store(ctx context.Context, record *Record, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	record.ExpiresAt = s.now().Add(time.Duration(ttlSeconds) * time.Second)
	if err := s.repo.Put(ctx, record); err != nil {
		logger.FromContext(ctx).Warn("AI cache write failed", "error", err)
	}
}
