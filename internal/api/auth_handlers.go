package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/contract"
	"github.com/example/catering-cart/internal/infrastructure/store"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	users      store.UserRepository
	jwtService *auth.JWTService
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(users store.UserRepository, jwtService *auth.JWTService, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Login exchanges credentials for an access token carrying the user's
// customers. The token is returned in the body and as a cookie.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req contract.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("user lookup failed", zap.Error(err))
		respondJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	hash := ""
	if found {
		hash = user.PasswordHash
	}
	if err := auth.VerifyCredentials(req.Password, hash, found); err != nil {
		h.logger.Info("login rejected", zap.String("email", req.Email))
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if !user.Active {
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(user.ID, user.Email, user.Customers)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		respondJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("login succeeded", zap.String("user_id", user.ID), zap.Int("customers", len(user.Customers)))
	respondJSON(w, http.StatusOK, contract.LoginResponse{AccessToken: token, ExpiresAt: expiresAt})
}

// Logout clears the access token cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
