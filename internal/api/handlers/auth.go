package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/statvalue/statvalue-companion/internal/api/response"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/session"
)

// Authenticator logs users in against the backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*backend.AuthResponse, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResponse, error)
}

// AuthHandler handles login, registration and logout of a session.
type AuthHandler struct {
	sessions SessionManager
	auth     Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions SessionManager, auth Authenticator) *AuthHandler {
	return &AuthHandler{sessions: sessions, auth: auth}
}

// LoginRequest holds login credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned after a successful login or registration.
type AuthResult struct {
	Message  string `json:"message,omitempty"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login authenticates the session's user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, errors.New("username and password are required"))
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signIn(w, r, s, res)
}

// Register creates an account and signs the session in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req backend.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		response.BadRequest(w, errors.New("username, email and password are required"))
		return
	case req.Password != req.ConfirmPassword:
		response.BadRequest(w, errors.New("passwords do not match"))
		return
	}

	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signIn(w, r, s, res)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, s *session.Session, res *backend.AuthResponse) {
	id := session.Identity{
		UserID:   strconv.FormatInt(res.User.ID, 10),
		Username: res.User.Username,
		Email:    res.User.Email,
		Token:    res.Token,
	}
	if err := h.sessions.SetIdentity(r.Context(), s, id); err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, AuthResult{
		Message:  res.Message,
		UserID:   id.UserID,
		Username: id.Username,
		Email:    id.Email,
	})
}

// Logout forgets the session's identity.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.sessions)
	if !ok {
		return
	}
	if err := h.sessions.ClearIdentity(r.Context(), s); err != nil {
		response.InternalError(w, err)
		return
	}
	response.NoContent(w)
}
