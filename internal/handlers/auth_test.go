package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/identity"
	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
)

const testSecret = "test-secret"

type memoryProfileRepo struct {
	profiles map[string]types.UserProfile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{profiles: make(map[string]types.UserProfile)}
}

func (r *memoryProfileRepo) Get(_ context.Context, uid string) (types.UserProfile, error) {
	p, ok := r.profiles[uid]
	if !ok {
		return types.UserProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (r *memoryProfileRepo) GetByProviderEmail(_ context.Context, provider, email string) (types.UserProfile, error) {
	for _, p := range r.profiles {
		if p.Provider == provider && p.Email == email {
			return p, nil
		}
	}
	return types.UserProfile{}, store.ErrNotFound
}

func (r *memoryProfileRepo) Create(_ context.Context, p types.UserProfile) (types.UserProfile, error) {
	// Email uniqueness applies to password accounts only; federated rows
	// may share an empty email.
	if p.Provider == services.ProviderPassword {
		for _, existing := range r.profiles {
			if existing.Provider == services.ProviderPassword && existing.Email == p.Email {
				return types.UserProfile{}, store.ErrConflict
			}
		}
	}
	r.profiles[p.UID] = p
	return p, nil
}

func (r *memoryProfileRepo) Update(_ context.Context, p types.UserProfile) (types.UserProfile, error) {
	r.profiles[p.UID] = p
	return p, nil
}

func (r *memoryProfileRepo) AddTeamID(_ context.Context, uid, teamID string) error {
	p := r.profiles[uid]
	p.TeamIDs = append(p.TeamIDs, teamID)
	r.profiles[uid] = p
	return nil
}

func (r *memoryProfileRepo) RemoveTeamID(_ context.Context, uid, teamID string) error {
	p := r.profiles[uid]
	kept := p.TeamIDs[:0]
	for _, id := range p.TeamIDs {
		if id != teamID {
			kept = append(kept, id)
		}
	}
	p.TeamIDs = kept
	r.profiles[uid] = p
	return nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "msg", nil
}

type stubVerifier struct {
	identity types.Identity
	err      error
}

func (v stubVerifier) Verify(context.Context, string) (types.Identity, error) {
	return v.identity, v.err
}

func newAuthServer(verifiers identity.Registry) *httptest.Server {
	profiles := services.NewProfileService(newMemoryProfileRepo(), nopBus{}, logger.Nop())
	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, profiles, verifiers, testSecret)
	})
	return httptest.NewServer(router)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeAuth(t *testing.T, resp *http.Response) AuthResponse {
	t.Helper()
	defer resp.Body.Close()
	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	server := newAuthServer(identity.Registry{})
	defer server.Close()

	resp := postJSON(t, server.URL+"/auth/register", RegisterRequest{
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Password:    "hunter22",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	registered := decodeAuth(t, resp)
	if registered.Token == "" {
		t.Fatal("no token on register")
	}
	if registered.Profile.Provider != services.ProviderPassword {
		t.Fatalf("provider %q", registered.Profile.Provider)
	}

	// Email is normalized, so a differently cased login matches.
	resp = postJSON(t, server.URL+"/auth/login", LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	logged := decodeAuth(t, resp)
	if logged.Profile.UID != registered.Profile.UID {
		t.Fatalf("uid mismatch %q vs %q", logged.Profile.UID, registered.Profile.UID)
	}

	// The token opens /auth/me.
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Token)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", meResp.StatusCode)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	server := newAuthServer(identity.Registry{})
	defer server.Close()

	req := RegisterRequest{Email: "a@b.c", DisplayName: "A", Password: "pw"}
	resp := postJSON(t, server.URL+"/auth/register", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/auth/register", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server := newAuthServer(identity.Registry{})
	defer server.Close()

	resp := postJSON(t, server.URL+"/auth/register", RegisterRequest{Email: "a@b.c", DisplayName: "A", Password: "right"})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/auth/login", LoginRequest{Email: "a@b.c", Password: "wrong"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestFederatedSignIn(t *testing.T) {
	verifiers := identity.Registry{
		"google": stubVerifier{identity: types.Identity{
			UID:         "google:42",
			Provider:    "google",
			DisplayName: "Alice",
			Email:       "alice@example.com",
		}},
	}
	server := newAuthServer(verifiers)
	defer server.Close()

	resp := postJSON(t, server.URL+"/auth/federated", FederatedRequest{Provider: "google", AccessToken: "tok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	out := decodeAuth(t, resp)
	if out.Profile.UID != "google:42" {
		t.Fatalf("uid %q", out.Profile.UID)
	}
	if out.Token == "" {
		t.Fatal("no token")
	}
}

// tokenVerifier resolves each access token to a distinct identity.
type tokenVerifier map[string]types.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (types.Identity, error) {
	id, ok := v[token]
	if !ok {
		return types.Identity{}, identity.ErrUnverified
	}
	return id, nil
}

func TestFederatedSignInWithoutEmail(t *testing.T) {
	// Providers can withhold the email address; two such users must both
	// get profiles on first sign-in.
	verifiers := identity.Registry{
		"github": tokenVerifier{
			"tok-1": {UID: "github:1", Provider: "github", DisplayName: "octocat"},
			"tok-2": {UID: "github:2", Provider: "github", DisplayName: "hubot"},
		},
	}
	server := newAuthServer(verifiers)
	defer server.Close()

	resp := postJSON(t, server.URL+"/auth/federated", FederatedRequest{Provider: "github", AccessToken: "tok-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first sign-in status %d", resp.StatusCode)
	}
	first := decodeAuth(t, resp)

	resp = postJSON(t, server.URL+"/auth/federated", FederatedRequest{Provider: "github", AccessToken: "tok-2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second sign-in status %d", resp.StatusCode)
	}
	second := decodeAuth(t, resp)

	if first.Profile.UID == second.Profile.UID {
		t.Fatalf("both sign-ins resolved to %q", first.Profile.UID)
	}
}

func TestFederatedRejectedToken(t *testing.T) {
	verifiers := identity.Registry{
		"google": stubVerifier{err: identity.ErrUnverified},
	}
	server := newAuthServer(verifiers)
	defer server.Close()

	resp := postJSON(t, server.URL+"/auth/federated", FederatedRequest{Provider: "google", AccessToken: "bad"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuthRejectsGarbage(t *testing.T) {
	server := newAuthServer(identity.Registry{})
	defer server.Close()

	for _, header := range []string{"", "Bearer", "Bearer not-a-jwt", "Basic abc"} {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("me: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("header %q: status %d, want 401", header, resp.StatusCode)
		}
	}
}
