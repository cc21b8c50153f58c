package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/engine/task"
)

type memoryRepo struct {
	records map[string]*Record
	getErr  error
	putErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[string]*Record{}}
}

func (r *memoryRepo) Get(_ context.Context, cacheKey string) (*Record, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.records[cacheKey], nil
}

func (r *memoryRepo) Put(_ context.Context, record *Record) error {
	if r.putErr != nil {
		return r.putErr
	}
	r.records[record.CacheKey] = record
	return nil
}

func basePrompt() *task.RenderedPrompt {
	return &task.RenderedPrompt{Segments: []task.RenderedSegment{
		{Role: task.RoleSystem, Content: "You are a tutor."},
		{Role: task.RoleUser, Content: "Explain recursion."},
	}}
}

func TestKey(t *testing.T) {
	t.Run("Should be deterministic for identical inputs", func(t *testing.T) {
		a := Key(basePrompt(), "gemini", "gemini-pro", "task-1", "fp")
		b := Key(basePrompt(), "gemini", "gemini-pro", "task-1", "fp")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("Should change when any input changes", func(t *testing.T) {
		base := Key(basePrompt(), "gemini", "gemini-pro", "task-1", "fp")

		assert.NotEqual(t, base, Key(basePrompt(), "openai", "gemini-pro", "task-1", "fp"))
		assert.NotEqual(t, base, Key(basePrompt(), "gemini", "gemini-flash", "task-1", "fp"))
		assert.NotEqual(t, base, Key(basePrompt(), "gemini", "gemini-pro", "task-2", "fp"))
		assert.NotEqual(t, base, Key(basePrompt(), "gemini", "gemini-pro", "task-1", "other"))

		other := basePrompt()
		other.Segments[1].Content = "Explain iteration."
		assert.NotEqual(t, base, Key(other, "gemini", "gemini-pro", "task-1", "fp"))
	})

	t.Run("Should skip the model when unset", func(t *testing.T) {
		withModel := Key(basePrompt(), "gemini", "gemini-pro", "task-1", "")
		withoutModel := Key(basePrompt(), "gemini", "", "task-1", "")
		assert.NotEqual(t, withModel, withoutModel)
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("Should distinguish differing inputs and toggles", func(t *testing.T) {
		a := Fingerprint(map[string]any{"topic": "loops"}, task.Selections{"difficulty": "easy"})
		b := Fingerprint(map[string]any{"topic": "loops"}, task.Selections{"difficulty": "hard"})
		assert.NotEqual(t, a, b)
	})
}

func TestService(t *testing.T) {
	t.Run("Should round-trip an entry inside its TTL", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo)

		record := &Record{
			CacheKey:     "key-1",
			ProviderName: "gemini",
			ModelName:    "gemini-pro",
			TaskID:       "task-1",
			Response:     Entry{Model: "gemini-pro", Content: "cached answer"},
		}
		svc.Store(context.Background(), record, 300)

		hit := svc.Lookup(context.Background(), "key-1")
		require.NotNil(t, hit)
		assert.Equal(t, "cached answer", hit.Response.Content)
		assert.Equal(t, "gemini", hit.ProviderName)
		assert.Greater(t, hit.TTLRemainingSeconds, 0)
		assert.LessOrEqual(t, hit.TTLRemainingSeconds, 300)
	})

	t.Run("Should treat entries past their expiry as misses", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.records["key-1"] = &Record{
			CacheKey:  "key-1",
			Response:  Entry{Content: "stale"},
			ExpiresAt: time.Now().Add(-time.Second),
		}
		svc := NewService(repo)

		assert.Nil(t, svc.Lookup(context.Background(), "key-1"))
	})

	t.Run("Should treat an expiry equal to now as a miss", func(t *testing.T) {
		repo := newMemoryRepo()
		now := time.Now()
		repo.records["key-1"] = &Record{
			CacheKey:  "key-1",
			Response:  Entry{Content: "edge"},
			ExpiresAt: now,
		}
		svc := NewService(repo)
		svc.now = func() time.Time { return now }

		assert.Nil(t, svc.Lookup(context.Background(), "key-1"))
	})

	t.Run("Should skip writes with a non-positive TTL", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo)

		svc.Store(context.Background(), &Record{CacheKey: "key-1"}, 0)
		assert.Empty(t, repo.records)
	})

	t.Run("Should degrade to a miss on lookup errors", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.getErr = errors.New("boom")
		svc := NewService(repo)

		assert.Nil(t, svc.Lookup(context.Background(), "key-1"))
	})

	t.Run("Should swallow write errors", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.putErr = errors.New("boom")
		svc := NewService(repo)

		svc.Store(context.Background(), &Record{CacheKey: "key-1"}, 60)
	})
}
