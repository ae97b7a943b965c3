package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/loginapp/internal/common"
	"github.com/dmitrijs2005/loginapp/internal/server/models"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_id"

// ErrMessageInternal is the generic message for 500 responses. Do not expose
// internal details to clients.
const ErrMessageInternal = "internal server error"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{Username: u.Username, CreatedAt: u.CreatedAt}
}

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	user, err := s.auth.Register(r.Context(), input.Username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrWeakPassword):
			// Registration failures carry precise reasons to guide correction.
			JSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, common.ErrUsernameTaken):
			JSONError(w, "username already exists", http.StatusConflict)
		default:
			s.logger.Error(r.Context(), "registration failed", "error", err.Error())
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    toUserResponse(user),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.auth.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		// Deliberately vague: unknown user and wrong password share one
		// message so account existence never leaks.
		if errors.Is(err, common.ErrInvalidCredentials) {
			JSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err.Error())
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    toUserResponse(result.User),
		"token":   result.AccessToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			s.logger.Error(r.Context(), "logout failed", "error", err.Error())
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// bearerToken extracts the access token from the Authorization header, or ""
// when the header is absent or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// handleMe authenticates either by session cookie or by a Bearer access
// token; the cookie wins when both are present.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		user, err := s.auth.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, common.ErrSessionNotFound) {
				JSONError(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			s.logger.Error(r.Context(), "session lookup failed", "error", err.Error())
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    toUserResponse(user),
		})
		return
	}

	if token := bearerToken(r); token != "" {
		user, err := s.auth.UserFromAccessToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				JSONError(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			s.logger.Error(r.Context(), "token lookup failed", "error", err.Error())
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    toUserResponse(user),
		})
		return
	}

	JSONError(w, "not authenticated", http.StatusUnauthorized)
}
