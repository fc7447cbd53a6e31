package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/internal/storage"
)

const maxAvatarBytes = 4 << 20

// ProfileHandler serves avatar uploads and downloads.
type ProfileHandler struct {
	profileService *services.ProfileService
	avatars        *storage.Avatars
}

// ProfileRouter registers avatar routes. Uploads require authentication;
// reads are public so avatars render for every team member.
func ProfileRouter(
	r chi.Router,
	profileService *services.ProfileService,
	avatars *storage.Avatars,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := &ProfileHandler{profileService: profileService, avatars: avatars}
	if authMiddleware != nil {
		r.With(authMiddleware).Post("/avatar", handler.UploadAvatar)
	} else {
		r.Post("/avatar", handler.UploadAvatar)
	}
	r.Get("/avatars/*", handler.ServeAvatar)
}

// UploadAvatar stores the request body as the caller's avatar and points
// the profile at it.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	defer body.Close()

	key, err := h.avatars.Put(r.Context(), uid, body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported image type")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	profile, err := h.profileService.SetAvatarURL(r.Context(), uid, "/"+key)
	if err != nil {
		writeServiceError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ServeAvatar streams a stored avatar object.
func (h *ProfileHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	key := "avatars/" + chi.URLParam(r, "*")
	if strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	object, err := h.avatars.Open(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer object.Close()

	if _, err := io.Copy(w, object); err != nil {
		return
	}
}
