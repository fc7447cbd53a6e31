// Package identity adapts external sign-in providers to the opaque
// identities the rest of the system consumes. The providers themselves are
// black boxes: each Verifier exchanges a provider-issued access token for
// the subject's stable id and display metadata over the provider's own
// HTTP endpoint.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lucas6028/silver-server/types"
)

// ErrUnverified is returned when a provider rejects the presented token.
var ErrUnverified = errors.New("identity not verified")

// Verifier exchanges a provider access token for an identity.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (types.Identity, error)
}

// Registry maps provider names to verifiers.
type Registry map[string]Verifier

// DefaultRegistry wires the two federated providers.
func DefaultRegistry() Registry {
	client := &http.Client{Timeout: 10 * time.Second}
	return Registry{
		"google": NewGoogleVerifier(client),
		"github": NewGitHubVerifier(client),
	}
}

// Verify dispatches to the named provider.
func (r Registry) Verify(ctx context.Context, provider, accessToken string) (types.Identity, error) {
	verifier, ok := r[provider]
	if !ok {
		return types.Identity{}, fmt.Errorf("unknown provider %q: %w", provider, ErrUnverified)
	}
	return verifier.Verify(ctx, accessToken)
}

// GoogleVerifier resolves identities via Google's userinfo endpoint.
type GoogleVerifier struct {
	client  *http.Client
	baseURL string
}

func NewGoogleVerifier(client *http.Client) *GoogleVerifier {
	return &GoogleVerifier{client: client, baseURL: "https://www.googleapis.com"}
}

func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (types.Identity, error) {
	var payload struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, v.client, v.baseURL+"/oauth2/v3/userinfo", accessToken, &payload); err != nil {
		return types.Identity{}, err
	}
	if payload.Sub == "" {
		return types.Identity{}, ErrUnverified
	}
	return types.Identity{
		UID:         "google:" + payload.Sub,
		Provider:    "google",
		DisplayName: payload.Name,
		Email:       payload.Email,
		AvatarURL:   payload.Picture,
	}, nil
}

// GitHubVerifier resolves identities via the GitHub user endpoint.
type GitHubVerifier struct {
	client  *http.Client
	baseURL string
}

func NewGitHubVerifier(client *http.Client) *GitHubVerifier {
	return &GitHubVerifier{client: client, baseURL: "https://api.github.com"}
}

func (v *GitHubVerifier) Verify(ctx context.Context, accessToken string) (types.Identity, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, v.client, v.baseURL+"/user", accessToken, &payload); err != nil {
		return types.Identity{}, err
	}
	if payload.ID == 0 {
		return types.Identity{}, ErrUnverified
	}
	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	return types.Identity{
		UID:         "github:" + strconv.FormatInt(payload.ID, 10),
		Provider:    "github",
		DisplayName: name,
		Email:       payload.Email,
		AvatarURL:   payload.AvatarURL,
	}, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, ErrUnverified)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
