package handler

import (
	"net/http"

	"go-freelance/internal/service"
)

type AdminHandler struct {
	tokens *service.TokenService
}

func NewAdminHandler(tokens *service.TokenService) *AdminHandler {
	return &AdminHandler{tokens: tokens}
}

// CleanupTokens runs the expired-token sweep on demand.
func (h *AdminHandler) CleanupTokens(w http.ResponseWriter, r *http.Request) {
	result, err := h.tokens.CleanupExpiredTokens(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Expired tokens purged", result)
}
