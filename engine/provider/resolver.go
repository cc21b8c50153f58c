package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskgate/taskgate/pkg/logger"
)

// ProviderGemini is the only provider with a system fallback.
const ProviderGemini = "gemini"

// SystemCredentials is the platform-owned fallback credential, sourced
// from configuration at startup.
type SystemCredentials struct {
	APIKey string
	Model  string
}

// ResolveInput identifies the caller and their optional provider request.
type ResolveInput struct {
	UserID            string
	TeamID            string
	PreferredProvider string
}

// Resolver walks the credential precedence chain: team-selected provider,
// then the caller's own credential, then the system fallback.
type Resolver struct {
	store  Store
	system SystemCredentials
}

func NewResolver(store Store, system SystemCredentials) *Resolver {
	return &Resolver{store: store, system: system}
}

type teamLookup struct {
	credentials   *Credentials
	allowFallback bool
}

// Resolve returns the credentials the request must run under, or a
// ResolutionError when team policy or configuration forbids every option.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*Credentials, error) {
	var team *teamLookup
	if in.TeamID != "" {
		team = r.lookupTeam(ctx, in.TeamID)
	}

	providerName := in.PreferredProvider
	if providerName == "" && team != nil && team.credentials != nil {
		providerName = team.credentials.Provider
	}
	if providerName == "" {
		providerName = ProviderGemini
	}

	if team != nil && team.credentials != nil && team.credentials.Provider == providerName {
		return team.credentials, nil
	}

	if override := r.lookupUser(ctx, in.UserID, providerName); override != nil {
		return override, nil
	}

	if team != nil && !team.allowFallback {
		return nil, &ResolutionError{Reason: fmt.Sprintf(
			"team configuration requires a configured provider for %q and no fallback is allowed", providerName)}
	}

	if providerName != ProviderGemini {
		return nil, &ResolutionError{Reason: fmt.Sprintf("provider %q is not configured for system fallback", providerName)}
	}

	if r.system.APIKey == "" {
		return nil, &ResolutionError{Reason: "system gemini API key is not configured"}
	}

	model := r.system.Model
	if model == "" {
		model = "gemini-pro"
	}
	return &Credentials{
		Provider:       ProviderGemini,
		APIKey:         r.system.APIKey,
		Model:          model,
		IsUserSupplied: false,
	}, nil
}

// lookupTeam never fails the request. A missing settings table means the
// team has no policy at all; any other store error still leaves the
// fallback door open so the caller is not locked out by a transient fault.
func (r *Resolver) lookupTeam(ctx context.Context, teamID string) *teamLookup {
	log := logger.FromContext(ctx)

	settings, err := r.store.GetTeamSettings(ctx, teamID)
	if err != nil {
		if errors.Is(err, ErrSettingsTableMissing) {
			log.Warn("team AI settings table not found, ignoring team provider resolution")
			return nil
		}
		log.Warn("failed to look up team AI settings", "team_id", teamID, "error", err)
		return &teamLookup{allowFallback: true}
	}
	if settings == nil {
		return &teamLookup{allowFallback: true}
	}

	lookup := &teamLookup{allowFallback: settings.AllowSystemFallback}
	if settings.SelectedUserProviderID == nil || *settings.SelectedUserProviderID == "" {
		return lookup
	}

	record, err := r.store.GetProviderByID(ctx, *settings.SelectedUserProviderID)
	if err != nil {
		log.Warn("failed to fetch team-selected provider record", "provider_id", *settings.SelectedUserProviderID, "error", err)
		return lookup
	}
	if record == nil {
		return lookup
	}

	lookup.credentials = toCredentials(record)
	return lookup
}

func (r *Resolver) lookupUser(ctx context.Context, userID, providerName string) *Credentials {
	record, err := r.store.GetUserProvider(ctx, userID, providerName)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to look up user AI provider", "user_id", userID, "error", err)
		return nil
	}
	if record == nil {
		return nil
	}
	return toCredentials(record)
}

// TODO: decrypt EncryptedAPIKey once key management lands; rows store the
// value as written today.
func toCredentials(record *UserProviderRecord) *Credentials {
	return &Credentials{
		Provider:       record.ProviderName,
		APIKey:         record.EncryptedAPIKey,
		Model:          record.ModelPreferences["default"],
		IsUserSupplied: true,
	}
}
