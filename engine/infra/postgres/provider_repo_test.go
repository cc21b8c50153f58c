package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/engine/provider"
)

func TestProviderRepo_GetTeamSettings(t *testing.T) {
	t.Run("Should return the team settings row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		selected := "prov-1"
		rows := mockPool.NewRows([]string{"team_id", "selected_user_provider_id", "allow_system_fallback"}).
			AddRow("team-1", &selected, false)
		mockPool.ExpectQuery("SELECT .+ FROM team_ai_settings").
			WithArgs("team-1").
			WillReturnRows(rows)

		settings, err := repo.GetTeamSettings(context.Background(), "team-1")
		require.NoError(t, err)
		require.NotNil(t, settings)
		assert.Equal(t, "prov-1", *settings.SelectedUserProviderID)
		assert.False(t, settings.AllowSystemFallback)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return nil when the team has no row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		mockPool.ExpectQuery("SELECT .+ FROM team_ai_settings").
			WithArgs("team-1").
			WillReturnError(pgx.ErrNoRows)

		settings, err := repo.GetTeamSettings(context.Background(), "team-1")
		require.NoError(t, err)
		assert.Nil(t, settings)
	})

	t.Run("Should map an undefined table to the sentinel error", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		mockPool.ExpectQuery("SELECT .+ FROM team_ai_settings").
			WithArgs("team-1").
			WillReturnError(&pgconn.PgError{Code: pgUndefinedTable})

		_, err = repo.GetTeamSettings(context.Background(), "team-1")
		assert.ErrorIs(t, err, provider.ErrSettingsTableMissing)
	})

	t.Run("Should wrap other query errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		mockPool.ExpectQuery("SELECT .+ FROM team_ai_settings").
			WithArgs("team-1").
			WillReturnError(errors.New("connection refused"))

		_, err = repo.GetTeamSettings(context.Background(), "team-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, provider.ErrSettingsTableMissing)
	})
}

func TestProviderRepo_GetUserProvider(t *testing.T) {
	t.Run("Should return the matching credential", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		rows := mockPool.NewRows([]string{"id", "user_id", "provider_name", "encrypted_api_key", "model_preferences"}).
			AddRow("prov-1", "user-1", "gemini", "secret", map[string]string{"default": "gemini-pro"})
		mockPool.ExpectQuery("SELECT .+ FROM user_ai_providers").
			WithArgs("user-1", "gemini").
			WillReturnRows(rows)

		record, err := repo.GetUserProvider(context.Background(), "user-1", "gemini")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "secret", record.EncryptedAPIKey)
		assert.Equal(t, "gemini-pro", record.ModelPreferences["default"])
	})

	t.Run("Should return nil on a miss", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		mockPool.ExpectQuery("SELECT .+ FROM user_ai_providers").
			WithArgs("user-1", "gemini").
			WillReturnError(pgx.ErrNoRows)

		record, err := repo.GetUserProvider(context.Background(), "user-1", "gemini")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestProviderRepo_GetProviderByID(t *testing.T) {
	t.Run("Should fetch a credential regardless of owner", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewProviderRepo(mockPool)

		rows := mockPool.NewRows([]string{"id", "user_id", "provider_name", "encrypted_api_key", "model_preferences"}).
			AddRow("prov-1", "user-2", "gemini", "team-secret", map[string]string(nil))
		mockPool.ExpectQuery("SELECT .+ FROM user_ai_providers").
			WithArgs("prov-1").
			WillReturnRows(rows)

		record, err := repo.GetProviderByID(context.Background(), "prov-1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "user-2", record.UserID)
	})
}
