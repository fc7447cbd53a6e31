package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
	"go.uber.org/zap"
)

// codeAlphabet excludes visually ambiguous characters (I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// TeamRepository defines persistence operations for teams.
type TeamRepository interface {
	Get(ctx context.Context, id string) (types.Team, error)
	GetByCode(ctx context.Context, code string) (types.Team, error)
	ListByIDs(ctx context.Context, ids []string) ([]types.Team, error)
	Create(ctx context.Context, team types.Team) (types.Team, error)
	UpdateMembers(ctx context.Context, id string, members []types.TeamMember) error
	Delete(ctx context.Context, id string) error
}

// TeamService encapsulates team membership use-cases. Create, Join and
// Leave each touch two records (team + profile) with sequential writes and
// no cross-record transaction; a crash between the writes leaves them
// inconsistent, which is accepted.
type TeamService struct {
	repo     TeamRepository
	profiles ProfileRepository
	bus      Publisher
	log      *zap.SugaredLogger
}

func NewTeamService(repo TeamRepository, profiles ProfileRepository, bus Publisher, log *zap.SugaredLogger) *TeamService {
	return &TeamService{repo: repo, profiles: profiles, bus: bus, log: log}
}

// GenerateCode produces a join code from the fixed alphabet. Codes are not
// checked for global uniqueness; the collision probability is accepted.
func GenerateCode() string {
	var sb strings.Builder
	sb.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		sb.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

// ListForUser returns the teams the profile references, in creation order.
func (s *TeamService) ListForUser(ctx context.Context, uid string) ([]types.Team, error) {
	profile, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByIDs(ctx, profile.TeamIDs)
}

// Create makes a new team with the creator as sole Captain, then appends
// the team id to the creator's profile.
func (s *TeamService) Create(ctx context.Context, actor types.Identity, name string) (types.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Team{}, fmt.Errorf("team name is required: %w", store.ErrInvalid)
	}

	team := types.Team{
		ID:   uuid.NewString(),
		Name: name,
		Code: GenerateCode(),
		Members: []types.TeamMember{{
			UID:         actor.UID,
			DisplayName: actor.DisplayName,
			Email:       actor.Email,
			AvatarURL:   actor.AvatarURL,
			JoinedAt:    time.Now(),
			Role:        types.RoleCaptain,
		}},
		CreatedBy: actor.UID,
	}

	created, err := s.repo.Create(ctx, team)
	if err != nil {
		return types.Team{}, fmt.Errorf("create team: %w", err)
	}

	if err := s.profiles.AddTeamID(ctx, actor.UID, created.ID); err != nil {
		// The team exists but the profile write failed. Not compensated.
		s.log.Errorw("profile team-id write failed after team create", "team", created.ID, "uid", actor.UID, "error", err)
		return types.Team{}, err
	}

	s.publishMembershipChange(ctx, created.ID, actor.UID)
	return created, nil
}

// Join adds the actor to the team matching code. The code is normalized to
// uppercase before lookup. A missing team or an existing membership fails
// without mutating either record.
func (s *TeamService) Join(ctx context.Context, actor types.Identity, code string) (types.Team, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	team, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return types.Team{}, err
	}
	if team.HasMember(actor.UID) {
		return types.Team{}, fmt.Errorf("already a member: %w", store.ErrConflict)
	}

	members := append(team.Members, types.TeamMember{
		UID:         actor.UID,
		DisplayName: actor.DisplayName,
		Email:       actor.Email,
		AvatarURL:   actor.AvatarURL,
		JoinedAt:    time.Now(),
		Role:        types.RoleMember,
	})
	if err := s.repo.UpdateMembers(ctx, team.ID, members); err != nil {
		return types.Team{}, fmt.Errorf("join team: %w", err)
	}
	if err := s.profiles.AddTeamID(ctx, actor.UID, team.ID); err != nil {
		s.log.Errorw("profile team-id write failed after join", "team", team.ID, "uid", actor.UID, "error", err)
		return types.Team{}, err
	}

	team.Members = members
	s.publishMembershipChange(ctx, team.ID, actor.UID)
	return team, nil
}

// Leave removes the actor from the roster. When the roster empties, the
// team record is deleted. The team id is always removed from the actor's
// profile.
func (s *TeamService) Leave(ctx context.Context, uid, teamID string) error {
	team, err := s.repo.Get(ctx, teamID)
	if err != nil {
		return err
	}

	remaining := make([]types.TeamMember, 0, len(team.Members))
	for _, m := range team.Members {
		if m.UID != uid {
			remaining = append(remaining, m)
		}
	}

	if len(remaining) == 0 {
		if err := s.repo.Delete(ctx, teamID); err != nil {
			return fmt.Errorf("delete empty team: %w", err)
		}
	} else {
		if err := s.repo.UpdateMembers(ctx, teamID, remaining); err != nil {
			return fmt.Errorf("leave team: %w", err)
		}
	}

	if err := s.profiles.RemoveTeamID(ctx, uid, teamID); err != nil {
		s.log.Errorw("profile team-id removal failed after leave", "team", teamID, "uid", uid, "error", err)
		return err
	}

	s.publishMembershipChange(ctx, teamID, uid)
	return nil
}

func (s *TeamService) publishMembershipChange(ctx context.Context, teamID, uid string) {
	publishChange(ctx, s.bus, s.log, eventsTeamChannel, map[string]string{attrTeam: teamID, attrUser: uid})
	publishChange(ctx, s.bus, s.log, eventsProfileChannel, map[string]string{attrUser: uid})
}
