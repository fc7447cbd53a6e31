package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/judge"
	"github.com/lucas6028/silver-server/types"
)

// ContestHandler serves the upcoming contest feed.
type ContestHandler struct {
	judgeClient *judge.Client
}

// ContestRouter registers contest routes on the given router.
func ContestRouter(r chi.Router, judgeClient *judge.Client, authMiddleware func(http.Handler) http.Handler) {
	handler := &ContestHandler{judgeClient: judgeClient}
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Get("/upcoming", handler.Upcoming)
	})
}

func (h *ContestHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	contests, err := h.judgeClient.UpcomingContests(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch contests")
		return
	}

	now := time.Now()
	for i := range contests {
		contests[i].TimeUntil = judge.FormatTimeUntil(contests[i].StartTimeSeconds, now)
	}
	writeJSON(w, http.StatusOK, ContestListResponse{Items: contests})
}

type ContestListResponse struct {
	Items []types.Contest `json:"items"`
}
