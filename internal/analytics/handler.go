// internal/analytics/handler.go
package analytics

import (
	"context"
	"encoding/json"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apgate/pkg/apierr"
)

type TokenVerifier interface {
	UserFromToken(ctx context.Context, idToken string) (*auth.Token, bool)
}

// RegisterRoutes mounts POST /sendevent. The handler answers
// {success:bool}; upstream analytics failures do not become HTTP errors.
func RegisterRoutes(r chi.Router, svc *Service, verifier TokenVerifier, log *zap.SugaredLogger, apiLimit func(http.Handler) http.Handler) {
	h := &handler{svc: svc, verifier: verifier, log: log}
	r.With(apiLimit).Post("/sendevent", h.sendEvent)
}

type handler struct {
	svc      *Service
	verifier TokenVerifier
	log      *zap.SugaredLogger
}

func (h *handler) sendEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken  string         `json:"idToken"`
		ClientID string         `json:"client_id"`
		Event    string         `json:"event"`
		Params   map[string]any `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.IDToken == "" {
		apierr.JSON(w, http.StatusUnauthorized, map[string]bool{"success": false})
		return
	}
	if _, ok := h.verifier.UserFromToken(r.Context(), req.IDToken); !ok {
		apierr.JSON(w, http.StatusUnauthorized, map[string]bool{"success": false})
		return
	}
	if req.ClientID == "" || req.Event == "" {
		apierr.JSON(w, http.StatusBadRequest, map[string]bool{"success": false})
		return
	}
	err := h.svc.Send(r.Context(), Event{ClientID: req.ClientID, Name: req.Event, Params: req.Params})
	if err != nil {
		h.log.Errorw("analytics send failed", "event", req.Event, "err", err)
	}
	apierr.JSON(w, http.StatusOK, map[string]bool{"success": err == nil})
}
