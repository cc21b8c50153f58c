package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskgate/taskgate/engine/provider"
)

const pgUndefinedTable = "42P01"

// ProviderRepo implements provider.Store on PostgreSQL.
type ProviderRepo struct {
	db DB
}

func NewProviderRepo(db DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

type userProviderRow struct {
	ID               string            `db:"id"`
	UserID           string            `db:"user_id"`
	ProviderName     string            `db:"provider_name"`
	EncryptedAPIKey  string            `db:"encrypted_api_key"`
	ModelPreferences map[string]string `db:"model_preferences"`
}

type teamSettingsRow struct {
	TeamID                 string  `db:"team_id"`
	SelectedUserProviderID *string `db:"selected_user_provider_id"`
	AllowSystemFallback    bool    `db:"allow_system_fallback"`
}

func (r *ProviderRepo) GetTeamSettings(ctx context.Context, teamID string) (*provider.TeamSettingsRecord, error) {
	query, args, err := squirrel.Select(
		"team_id",
		"selected_user_provider_id",
		"COALESCE(allow_system_fallback, TRUE) AS allow_system_fallback",
	).
		From("team_ai_settings").
		Where(squirrel.Eq{"team_id": teamID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building team settings query: %w", err)
	}

	var row teamSettingsRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, provider.ErrSettingsTableMissing
		}
		return nil, fmt.Errorf("querying team settings: %w", err)
	}
	return &provider.TeamSettingsRecord{
		TeamID:                 row.TeamID,
		SelectedUserProviderID: row.SelectedUserProviderID,
		AllowSystemFallback:    row.AllowSystemFallback,
	}, nil
}

func (r *ProviderRepo) GetProviderByID(ctx context.Context, id string) (*provider.UserProviderRecord, error) {
	query, args, err := selectUserProviders().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building provider query: %w", err)
	}
	return r.getUserProvider(ctx, query, args)
}

func (r *ProviderRepo) GetUserProvider(ctx context.Context, userID, providerName string) (*provider.UserProviderRecord, error) {
	query, args, err := selectUserProviders().
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"provider_name": providerName}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user provider query: %w", err)
	}
	return r.getUserProvider(ctx, query, args)
}

func (r *ProviderRepo) getUserProvider(ctx context.Context, query string, args []any) (*provider.UserProviderRecord, error) {
	var row userProviderRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user provider: %w", err)
	}
	return &provider.UserProviderRecord{
		ID:               row.ID,
		UserID:           row.UserID,
		ProviderName:     row.ProviderName,
		EncryptedAPIKey:  row.EncryptedAPIKey,
		ModelPreferences: row.ModelPreferences,
	}, nil
}

func selectUserProviders() squirrel.SelectBuilder {
	return squirrel.Select("id", "user_id", "provider_name", "encrypted_api_key", "model_preferences").
		From("user_ai_providers").
		PlaceholderFormat(squirrel.Dollar)
}
