// internal/session/handler.go
package session

import (
	"encoding/json"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apgate/pkg/apierr"
)

// RegisterRoutes mounts the Firebase session proxy endpoints. authLimit
// guards the credential-exchange endpoints against brute force.
func RegisterRoutes(r chi.Router, svc *Service, log *zap.SugaredLogger, authLimit func(http.Handler) http.Handler) {
	h := &handler{svc: svc, log: log}
	r.Group(func(gr chi.Router) {
		gr.Use(authLimit)
		gr.Post("/login", h.login)
		gr.Post("/refresh", h.refresh)
	})
	r.Post("/logout", h.logout)
	r.Post("/userinfo", h.userinfo)
	r.Post("/user-custom-token", h.customToken)
}

type handler struct {
	svc *Service
	log *zap.SugaredLogger
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Email == "" || body.Password == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-credentials", "ValidationError", "Email and password are required")
		return
	}
	if !h.svc.HasWebAPIKey() {
		apierr.Write(w, http.StatusInternalServerError, "missing-firebase-api-key", "ConfigError", "Firebase Web API Key is not configured")
		return
	}
	raw, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.RefreshToken == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-refresh-token", "ValidationError", "Refresh token is required")
		return
	}
	if !h.svc.HasWebAPIKey() {
		apierr.Write(w, http.StatusInternalServerError, "missing-firebase-api-key", "ConfigError", "Firebase Web API Key is not configured")
		return
	}
	raw, err := h.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// writeProviderError mirrors the upstream rejection into the uniform
// envelope. The proxy answers 200: the exchange itself worked, the
// credentials did not.
func (h *handler) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Errorw("identity exchange failed", "path", r.URL.Path, "err", err)
	if pe, ok := err.(*ProviderError); ok {
		apierr.JSON(w, http.StatusOK, map[string]any{
			"success": false,
			"code":    pe.Code,
			"name":    "FirebaseError",
			"full":    pe.Full,
		})
		return
	}
	apierr.JSON(w, http.StatusOK, apierr.Envelope{Code: "unhandled-exception", Name: "FirebaseError"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.verified(w, r)
	if !ok {
		return
	}
	if err := h.svc.RevokeUserTokens(r.Context(), tok.UID); err != nil {
		h.log.Errorw("revocation failed", "uid", tok.UID, "err", err)
		apierr.Write(w, http.StatusInternalServerError, "revocation-failed", "ServerError", "Failed to revoke tokens")
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All refresh tokens have been revoked",
	})
}

func (h *handler) userinfo(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.verified(w, r)
	if !ok {
		return
	}
	info, err := h.svc.User(r.Context(), tok.UID)
	if err != nil {
		h.log.Errorw("user lookup failed", "uid", tok.UID, "err", err)
		apierr.Write(w, http.StatusInternalServerError, "internal-error", "ServerError", "An unexpected error occurred")
		return
	}
	apierr.JSON(w, http.StatusOK, info)
}

func (h *handler) customToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.verified(w, r)
	if !ok {
		return
	}
	custom, err := h.svc.CustomLoginToken(r.Context(), tok.UID)
	if err != nil {
		h.log.Errorw("custom token failed", "uid", tok.UID, "err", err)
		apierr.Write(w, http.StatusInternalServerError, "custom-token-creation-failed", "ServerError", "Failed to create custom token")
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]string{"customToken": custom})
}

// verified extracts and verifies the idToken field shared by the
// token-bearing endpoints. It writes the 400/401 responses itself.
func (h *handler) verified(w http.ResponseWriter, r *http.Request) (tok *auth.Token, ok bool) {
	var body struct {
		IDToken string `json:"idToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.IDToken == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-id-token", "ValidationError", "ID token is required")
		return nil, false
	}
	t, valid := h.svc.UserFromToken(r.Context(), body.IDToken)
	if !valid {
		apierr.Write(w, http.StatusUnauthorized, "invalid-token", "AuthError", "Invalid or expired ID token")
		return nil, false
	}
	return t, true
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
