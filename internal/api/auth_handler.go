package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"gymslots/internal/service"
)

type LoginService interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthHandler struct {
	Auth     LoginService
	validate *validator.Validate
}

func NewAuthHandler(auth LoginService) *AuthHandler {
	return &AuthHandler{Auth: auth, validate: validator.New()}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
