package provider

import (
	"context"
	"errors"
)

// ErrSettingsTableMissing signals that the team settings relation does not
// exist yet. Resolution treats this as "no team policy" for the selected
// provider lookup, but not for the fallback-permission lookup.
var ErrSettingsTableMissing = errors.New("team ai settings table does not exist")

// UserProviderRecord is one credential a user has registered.
type UserProviderRecord struct {
	ID               string
	UserID           string
	ProviderName     string
	EncryptedAPIKey  string
	ModelPreferences map[string]string
}

// TeamSettingsRecord is a team's provider policy.
type TeamSettingsRecord struct {
	TeamID                 string
	SelectedUserProviderID *string
	AllowSystemFallback    bool
}

// Store reads credential and policy rows. Implementations return
// (nil, nil) for plain not-found so the resolver can keep walking the
// precedence chain.
type Store interface {
	// GetTeamSettings returns the team's policy row, or (nil, nil) when the
	// team has none. A missing relation surfaces as ErrSettingsTableMissing.
	GetTeamSettings(ctx context.Context, teamID string) (*TeamSettingsRecord, error)

	// GetProviderByID fetches one credential row regardless of owner.
	GetProviderByID(ctx context.Context, id string) (*UserProviderRecord, error)

	// GetUserProvider returns the caller's own credential for the named
	// provider, or (nil, nil) when they have none.
	GetUserProvider(ctx context.Context, userID, providerName string) (*UserProviderRecord, error)
}
