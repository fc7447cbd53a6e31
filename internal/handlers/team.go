package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/types"
)

// TeamHandler provides HTTP handlers for team membership.
type TeamHandler struct {
	teamService    *services.TeamService
	profileService *services.ProfileService
}

// NewTeamHandler constructs a handler with the provided services.
func NewTeamHandler(teamService *services.TeamService, profileService *services.ProfileService) *TeamHandler {
	return &TeamHandler{
		teamService:    teamService,
		profileService: profileService,
	}
}

// TeamRouter registers team routes on the given router. Every route
// requires authentication.
func TeamRouter(
	r chi.Router,
	teamService *services.TeamService,
	profileService *services.ProfileService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTeamHandler(teamService, profileService)
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Get("/", handler.ListTeams)
		r.Post("/", handler.CreateTeam)
		r.Post("/join", handler.JoinTeam)
		r.Post("/{teamID}/leave", handler.LeaveTeam)
	})
}

func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	teams, err := h.teamService.ListForUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	writeJSON(w, http.StatusOK, TeamListResponse{Items: teams})
}

func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	team, err := h.teamService.Create(r.Context(), actor, strings.TrimSpace(req.Name))
	if err != nil {
		writeServiceError(w, err, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req JoinTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	team, err := h.teamService.Join(r.Context(), actor, req.Code)
	if err != nil {
		writeServiceError(w, err, "failed to join team")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.teamService.Leave(r.Context(), uid, chi.URLParam(r, "teamID")); err != nil {
		writeServiceError(w, err, "failed to leave team")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) actor(r *http.Request) (types.Identity, error) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		return types.Identity{}, err
	}
	profile, err := h.profileService.Get(r.Context(), uid)
	if err != nil {
		return types.Identity{}, err
	}
	return types.Identity{
		UID:         profile.UID,
		Provider:    profile.Provider,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AvatarURL:   profile.AvatarURL,
	}, nil
}

type TeamListResponse struct {
	Items []types.Team `json:"items"`
}

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type JoinTeamRequest struct {
	Code string `json:"code"`
}
