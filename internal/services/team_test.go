package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
)

type fakeTeamRepo struct {
	teams map[string]types.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[string]types.Team)}
}

func (r *fakeTeamRepo) Get(_ context.Context, id string) (types.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return types.Team{}, store.ErrNotFound
	}
	return team, nil
}

func (r *fakeTeamRepo) GetByCode(_ context.Context, code string) (types.Team, error) {
	for _, team := range r.teams {
		if team.Code == code {
			return team, nil
		}
	}
	return types.Team{}, store.ErrNotFound
}

func (r *fakeTeamRepo) ListByIDs(_ context.Context, ids []string) ([]types.Team, error) {
	var out []types.Team
	for _, id := range ids {
		if team, ok := r.teams[id]; ok {
			out = append(out, team)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) Create(_ context.Context, team types.Team) (types.Team, error) {
	r.teams[team.ID] = team
	return team, nil
}

func (r *fakeTeamRepo) UpdateMembers(_ context.Context, id string, members []types.TeamMember) error {
	team, ok := r.teams[id]
	if !ok {
		return store.ErrNotFound
	}
	team.Members = members
	r.teams[id] = team
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.teams[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.teams, id)
	return nil
}

type fakeProfileRepo struct {
	profiles map[string]types.UserProfile
}

func newFakeProfileRepo(uids ...string) *fakeProfileRepo {
	repo := &fakeProfileRepo{profiles: make(map[string]types.UserProfile)}
	for _, uid := range uids {
		repo.profiles[uid] = types.UserProfile{UID: uid, TeamIDs: []string{}}
	}
	return repo
}

func (r *fakeProfileRepo) Get(_ context.Context, uid string) (types.UserProfile, error) {
	profile, ok := r.profiles[uid]
	if !ok {
		return types.UserProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (r *fakeProfileRepo) GetByProviderEmail(_ context.Context, provider, email string) (types.UserProfile, error) {
	for _, profile := range r.profiles {
		if profile.Provider == provider && profile.Email == email {
			return profile, nil
		}
	}
	return types.UserProfile{}, store.ErrNotFound
}

func (r *fakeProfileRepo) Create(_ context.Context, profile types.UserProfile) (types.UserProfile, error) {
	r.profiles[profile.UID] = profile
	return profile, nil
}

func (r *fakeProfileRepo) Update(_ context.Context, profile types.UserProfile) (types.UserProfile, error) {
	if _, ok := r.profiles[profile.UID]; !ok {
		return types.UserProfile{}, store.ErrNotFound
	}
	r.profiles[profile.UID] = profile
	return profile, nil
}

func (r *fakeProfileRepo) AddTeamID(_ context.Context, uid, teamID string) error {
	profile, ok := r.profiles[uid]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range profile.TeamIDs {
		if id == teamID {
			return nil
		}
	}
	profile.TeamIDs = append(profile.TeamIDs, teamID)
	r.profiles[uid] = profile
	return nil
}

func (r *fakeProfileRepo) RemoveTeamID(_ context.Context, uid, teamID string) error {
	profile, ok := r.profiles[uid]
	if !ok {
		return store.ErrNotFound
	}
	kept := profile.TeamIDs[:0]
	for _, id := range profile.TeamIDs {
		if id != teamID {
			kept = append(kept, id)
		}
	}
	profile.TeamIDs = kept
	r.profiles[uid] = profile
	return nil
}

func newTeamService(teams *fakeTeamRepo, profiles *fakeProfileRepo) *TeamService {
	return NewTeamService(teams, profiles, &recordingBus{}, logger.Nop())
}

var bob = types.Identity{UID: "u-bob", DisplayName: "Bob", Email: "bob@example.com"}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestTeamCreate(t *testing.T) {
	teams := newFakeTeamRepo()
	profiles := newFakeProfileRepo(alice.UID)
	svc := newTeamService(teams, profiles)

	team, err := svc.Create(context.Background(), alice, "  ICPC Squad  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if team.Name != "ICPC Squad" {
		t.Fatalf("name %q", team.Name)
	}
	if len(team.Code) != 6 {
		t.Fatalf("code %q", team.Code)
	}
	if len(team.Members) != 1 || team.Members[0].UID != alice.UID || team.Members[0].Role != types.RoleCaptain {
		t.Fatalf("roster %+v", team.Members)
	}

	profile, _ := profiles.Get(context.Background(), alice.UID)
	if len(profile.TeamIDs) != 1 || profile.TeamIDs[0] != team.ID {
		t.Fatalf("profile team ids %v", profile.TeamIDs)
	}
}

func TestTeamCreateRequiresName(t *testing.T) {
	svc := newTeamService(newFakeTeamRepo(), newFakeProfileRepo(alice.UID))

	_, err := svc.Create(context.Background(), alice, "   ")
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestTeamJoinNormalizesCode(t *testing.T) {
	teams := newFakeTeamRepo()
	profiles := newFakeProfileRepo(alice.UID, bob.UID)
	svc := newTeamService(teams, profiles)

	team, _ := svc.Create(context.Background(), alice, "Squad")

	joined, err := svc.Join(context.Background(), bob, "  "+strings.ToLower(team.Code)+" ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Members) != 2 {
		t.Fatalf("roster size %d", len(joined.Members))
	}
	if joined.Members[1].UID != bob.UID || joined.Members[1].Role != types.RoleMember {
		t.Fatalf("joined member %+v", joined.Members[1])
	}

	profile, _ := profiles.Get(context.Background(), bob.UID)
	if len(profile.TeamIDs) != 1 {
		t.Fatalf("profile team ids %v", profile.TeamIDs)
	}
}

func TestTeamJoinUnknownCode(t *testing.T) {
	svc := newTeamService(newFakeTeamRepo(), newFakeProfileRepo(bob.UID))

	_, err := svc.Join(context.Background(), bob, "ZZZZZZ")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTeamJoinTwiceFailsWithoutMutation(t *testing.T) {
	teams := newFakeTeamRepo()
	profiles := newFakeProfileRepo(alice.UID, bob.UID)
	svc := newTeamService(teams, profiles)

	team, _ := svc.Create(context.Background(), alice, "Squad")
	if _, err := svc.Join(context.Background(), bob, team.Code); err != nil {
		t.Fatalf("first join: %v", err)
	}

	_, err := svc.Join(context.Background(), bob, team.Code)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}

	current, _ := teams.Get(context.Background(), team.ID)
	if len(current.Members) != 2 {
		t.Fatalf("roster mutated on rejected join: %+v", current.Members)
	}
}

func TestTeamLeave(t *testing.T) {
	teams := newFakeTeamRepo()
	profiles := newFakeProfileRepo(alice.UID, bob.UID)
	svc := newTeamService(teams, profiles)

	team, _ := svc.Create(context.Background(), alice, "Squad")
	_, _ = svc.Join(context.Background(), bob, team.Code)

	if err := svc.Leave(context.Background(), bob.UID, team.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	current, _ := teams.Get(context.Background(), team.ID)
	if len(current.Members) != 1 || current.Members[0].UID != alice.UID {
		t.Fatalf("roster %+v after leave", current.Members)
	}
	profile, _ := profiles.Get(context.Background(), bob.UID)
	if len(profile.TeamIDs) != 0 {
		t.Fatalf("profile still references team: %v", profile.TeamIDs)
	}
}

func TestTeamLeaveLastMemberDeletesTeam(t *testing.T) {
	teams := newFakeTeamRepo()
	profiles := newFakeProfileRepo(alice.UID)
	svc := newTeamService(teams, profiles)

	team, _ := svc.Create(context.Background(), alice, "Solo")

	if err := svc.Leave(context.Background(), alice.UID, team.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := teams.Get(context.Background(), team.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("empty team not deleted")
	}
}
