package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/alertforge/alertforge/internal/api"
	"github.com/alertforge/alertforge/internal/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth        *middleware.JWTAuthMiddleware
	jwtExpiryHours int
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware, jwtExpiryHours int) *AuthHandler {
	return &AuthHandler{jwtAuth: jwtAuth, jwtExpiryHours: jwtExpiryHours}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		api.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if !h.jwtAuth.ValidateCredentials(req.Username, req.Password) {
		log.Printf("Failed login attempt for user '%s' from %s", req.Username, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(req.Username)
	if err != nil {
		log.Printf("Failed to generate token for user '%s': %v", req.Username, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("User '%s' logged in from %s", req.Username, r.RemoteAddr)
	api.RespondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Username:  req.Username,
		ExpiresIn: h.jwtExpiryHours * 60 * 60,
	})
}

// handleVerify reports whether the presented bearer token is valid.
// The route sits outside the auth skip list, but validation happens here so
// the response can carry the username.
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		api.RespondError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	claims, err := h.jwtAuth.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		api.RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"status":   "valid",
	})
}
