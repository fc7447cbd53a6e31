package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/judge"
	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/types"
)

// ProblemHandler provides HTTP handlers for the problem board.
type ProblemHandler struct {
	problemService *services.ProblemService
	profileService *services.ProfileService
	judgeClient    *judge.Client
}

// NewProblemHandler constructs a handler with the provided services.
func NewProblemHandler(problemService *services.ProblemService, profileService *services.ProfileService, judgeClient *judge.Client) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
		profileService: profileService,
		judgeClient:    judgeClient,
	}
}

// ProblemRouter registers problem routes on the given router. Every route
// requires authentication.
func ProblemRouter(
	r chi.Router,
	problemService *services.ProblemService,
	profileService *services.ProfileService,
	judgeClient *judge.Client,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProblemHandler(problemService, profileService, judgeClient)
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		handler.routes(r)
	})
}

func (h *ProblemHandler) routes(r chi.Router) {
	r.Get("/", h.ListProblems)
	r.Post("/", h.CreateProblem)
	r.Get("/metadata", h.LookupMetadata)
	r.Route("/{problemID}", func(r chi.Router) {
		r.Get("/", h.GetProblem)
		r.Patch("/status", h.SetStatus)
		r.Post("/assignees", h.AddAssignee)
		r.Delete("/assignees/{uid}", h.RemoveAssignee)
		r.Delete("/", h.DeleteProblem)
	})
}

func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.problemService.ListForUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	writeJSON(w, http.StatusOK, ProblemListResponse{Items: items})
}

func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	problem, err := h.problemService.Get(r.Context(), uid, chi.URLParam(r, "problemID"))
	if err != nil {
		writeServiceError(w, err, "failed to fetch problem")
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

// CreateProblem adds a problem to the caller's board. When a judge URL is
// supplied and the title is empty, metadata is filled in from the judge
// API; lookup failures fall back to whatever the client sent.
func (h *ProblemHandler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	problem := types.Problem{
		Title:      strings.TrimSpace(req.Title),
		Platform:   strings.TrimSpace(req.Platform),
		Difficulty: strings.TrimSpace(req.Difficulty),
		Status:     req.Status,
		Tags:       req.Tags,
		Assignees:  req.Assignees,
		URL:        strings.TrimSpace(req.URL),
	}

	if problem.Title == "" && problem.URL != "" {
		meta, err := h.judgeClient.Lookup(r.Context(), problem.URL)
		if err == nil || !errors.Is(err, judge.ErrUnsupported) {
			problem.Title = meta.Title
			problem.Platform = meta.Platform
			if problem.Difficulty == "" {
				problem.Difficulty = meta.Difficulty
			}
			if len(problem.Tags) == 0 {
				problem.Tags = meta.Tags
			}
		}
	}

	created, err := h.problemService.Create(r.Context(), actor, problem)
	if err != nil {
		writeServiceError(w, err, "failed to create problem")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// LookupMetadata previews judge metadata for a problem URL without
// creating anything.
func (h *ProblemHandler) LookupMetadata(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	meta, err := h.judgeClient.Lookup(r.Context(), url)
	if err != nil && errors.Is(err, judge.ErrUnsupported) {
		writeError(w, http.StatusBadRequest, "unsupported judge url")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *ProblemHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	problem, err := h.problemService.SetStatus(r.Context(), uid, chi.URLParam(r, "problemID"), req.Status)
	if err != nil {
		writeServiceError(w, err, "failed to update status")
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) AddAssignee(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AssigneeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	target := strings.TrimSpace(req.UID)
	if target == "" {
		target = actor.UID
	}

	problem, err := h.problemService.Assign(r.Context(), actor, chi.URLParam(r, "problemID"), target)
	if err != nil {
		writeServiceError(w, err, "failed to add assignee")
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) RemoveAssignee(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	problem, err := h.problemService.Unassign(r.Context(), uid, chi.URLParam(r, "problemID"), chi.URLParam(r, "uid"))
	if err != nil {
		writeServiceError(w, err, "failed to remove assignee")
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) DeleteProblem(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.problemService.Delete(r.Context(), uid, chi.URLParam(r, "problemID")); err != nil {
		writeServiceError(w, err, "failed to delete problem")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actor loads the caller's profile and folds it into an identity for
// service calls that record who acted.
func (h *ProblemHandler) actor(r *http.Request) (types.Identity, error) {
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

type ProblemListResponse struct {
	Items []types.Problem `json:"items"`
}

type CreateProblemRequest struct {
	Title      string       `json:"title"`
	Platform   string       `json:"platform"`
	Difficulty string       `json:"difficulty"`
	Status     types.Status `json:"status"`
	Tags       []string     `json:"tags"`
	Assignees  []string     `json:"assignees"`
	URL        string       `json:"url"`
}

type SetStatusRequest struct {
	Status types.Status `json:"status"`
}

type AssigneeRequest struct {
	UID string `json:"uid"`
}
