package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/taskgate/taskgate/engine/cache"
)

// CacheRepo implements cache.Repository on the ai_request_cache table.
type CacheRepo struct {
	db DB
}

func NewCacheRepo(db DB) *CacheRepo {
	return &CacheRepo{db: db}
}

type cacheRow struct {
	CacheKey     string    `db:"cache_key"`
	ProviderName *string   `db:"provider_name"`
	ModelName    *string   `db:"model_name"`
	TaskID       *string   `db:"task_id"`
	ResponseData []byte    `db:"response_data"`
	ExpiresAt    time.Time `db:"expires_at"`
}

func (r *CacheRepo) Get(ctx context.Context, cacheKey string) (*cache.Record, error) {
	query, args, err := squirrel.Select(
		"cache_key", "provider_name", "model_name", "task_id", "response_data", "expires_at",
	).
		From("ai_request_cache").
		Where(squirrel.Eq{"cache_key": cacheKey}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building cache query: %w", err)
	}

	var row cacheRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying cache: %w", err)
	}

	var entry cache.Entry
	if err := json.Unmarshal(row.ResponseData, &entry); err != nil {
		return nil, fmt.Errorf("decoding cached response: %w", err)
	}
	record := &cache.Record{
		CacheKey:  row.CacheKey,
		Response:  entry,
		ExpiresAt: row.ExpiresAt,
	}
	if row.ProviderName != nil {
		record.ProviderName = *row.ProviderName
	}
	if row.ModelName != nil {
		record.ModelName = *row.ModelName
	}
	if row.TaskID != nil {
		record.TaskID = *row.TaskID
	}
	return record, nil
}

func (r *CacheRepo) Put(ctx context.Context, record *cache.Record) error {
	payload, err := json.Marshal(record.Response)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	query, args, err := squirrel.Insert("ai_request_cache").
		Columns("cache_key", "provider_name", "model_name", "task_id", "response_data", "expires_at").
		Values(record.CacheKey, record.ProviderName, record.ModelName, record.TaskID, payload, record.ExpiresAt).
		Suffix(`ON CONFLICT (cache_key) DO UPDATE SET
			provider_name = EXCLUDED.provider_name,
			model_name = EXCLUDED.model_name,
			task_id = EXCLUDED.task_id,
			response_data = EXCLUDED.response_data,
			expires_at = EXCLUDED.expires_at,
			created_at = now()`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cache upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}
