package services

import (
	"context"
	"errors"

	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
	"go.uber.org/zap"
)

// ProfileRepository defines persistence operations for user profiles.
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (types.UserProfile, error)
	GetByProviderEmail(ctx context.Context, provider, email string) (types.UserProfile, error)
	Create(ctx context.Context, profile types.UserProfile) (types.UserProfile, error)
	Update(ctx context.Context, profile types.UserProfile) (types.UserProfile, error)
	AddTeamID(ctx context.Context, uid, teamID string) error
	RemoveTeamID(ctx context.Context, uid, teamID string) error
}

// Publisher is the subset of the message bus the services need.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ProviderPassword marks accounts registered with email and password
// instead of a federated provider.
const ProviderPassword = "password"

// ProfileService maps sign-in events to profiles.
type ProfileService struct {
	repo ProfileRepository
	bus  Publisher
	log  *zap.SugaredLogger
}

func NewProfileService(repo ProfileRepository, bus Publisher, log *zap.SugaredLogger) *ProfileService {
	return &ProfileService{repo: repo, bus: bus, log: log}
}

func (s *ProfileService) Get(ctx context.Context, uid string) (types.UserProfile, error) {
	return s.repo.Get(ctx, uid)
}

// Ensure returns the profile for the identity, creating it on the first
// observed sign-in. Existing profiles are returned untouched; display
// metadata is not refreshed from the provider.
func (s *ProfileService) Ensure(ctx context.Context, identity types.Identity) (types.UserProfile, error) {
	profile, err := s.repo.Get(ctx, identity.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.UserProfile{}, err
	}

	created, err := s.repo.Create(ctx, types.UserProfile{
		UID:         identity.UID,
		Provider:    identity.Provider,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		AvatarURL:   identity.AvatarURL,
		TeamIDs:     []string{},
	})
	if err != nil {
		return types.UserProfile{}, err
	}
	s.log.Infow("profile created", "uid", created.UID, "provider", created.Provider)
	return created, nil
}

// GetByProviderEmail looks up a profile by its sign-in provider and email.
func (s *ProfileService) GetByProviderEmail(ctx context.Context, provider, email string) (types.UserProfile, error) {
	return s.repo.GetByProviderEmail(ctx, provider, email)
}

// CreateLocal registers a password-based account. The caller hashes the
// password.
func (s *ProfileService) CreateLocal(ctx context.Context, email, displayName, passwordHash string) (types.UserProfile, error) {
	created, err := s.repo.Create(ctx, types.UserProfile{
		UID:          ProviderPassword + ":" + email,
		Provider:     ProviderPassword,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		TeamIDs:      []string{},
	})
	if err != nil {
		return types.UserProfile{}, err
	}
	s.log.Infow("profile created", "uid", created.UID, "provider", created.Provider)
	return created, nil
}

// SetAvatarURL updates the profile's avatar link after an upload.
func (s *ProfileService) SetAvatarURL(ctx context.Context, uid, avatarURL string) (types.UserProfile, error) {
	profile, err := s.repo.Get(ctx, uid)
	if err != nil {
		return types.UserProfile{}, err
	}
	profile.AvatarURL = avatarURL
	updated, err := s.repo.Update(ctx, profile)
	if err != nil {
		return types.UserProfile{}, err
	}
	s.publishProfileChange(ctx, uid)
	return updated, nil
}

func (s *ProfileService) publishProfileChange(ctx context.Context, uid string) {
	publishChange(ctx, s.bus, s.log, eventsProfileChannel, map[string]string{attrUser: uid})
}
