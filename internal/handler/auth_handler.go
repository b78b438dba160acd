package handler

import (
	"errors"
	"net/http"

	"go-freelance/internal/model"
	"go-freelance/internal/service"
	"go-freelance/internal/validation"
	"go-freelance/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	// exposeResetToken echoes reset tokens in responses; never set in production.
	exposeResetToken bool
}

func NewAuthHandler(service *service.AuthService, exposeResetToken bool) *AuthHandler {
	return &AuthHandler{service: service, exposeResetToken: exposeResetToken}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if errors.Is(err, model.ErrInvalidToken) {
		writeError(w, r, apierror.Unauthenticated("Invalid or expired refresh token"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Token refreshed", map[string]string{"accessToken": accessToken})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.LogoutRequest
	if err := decodeJSON(w, r, &payload, true); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Logout(r.Context(), identity.ID, payload.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ForgotPasswordRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.service.ForgotPassword(r.Context(), payload.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var data any
	if h.exposeResetToken {
		data = map[string]string{"resetToken": token}
	}
	writeSuccess(w, http.StatusOK, "Password reset instructions sent", data)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetPasswordRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.service.ResetPassword(r.Context(), payload.Token, payload.NewPassword)
	if errors.Is(err, model.ErrInvalidToken) {
		writeError(w, r, apierror.BadRequest("Invalid or expired reset token"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.service.Profile(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", profile)
}
