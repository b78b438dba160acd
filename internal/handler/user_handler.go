package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-freelance/internal/middleware"
	"go-freelance/internal/model"
	"go-freelance/internal/service"
	"go-freelance/pkg/apierror"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

// Get serves a user's public profile. The email and earnings are shown only
// to the user themselves or an admin.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, r, apierror.BadRequest("user id is required"))
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !middleware.CanAccess(identity, profile, model.ProfileOwnedBy) {
		profile = profile.Redacted()
	}

	writeSuccess(w, http.StatusOK, "", profile)
}
