// internal/store/handler.go
package store

import (
	"context"
	"encoding/json"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apgate/pkg/apierr"
)

// TokenVerifier collapses verification failures into a false second
// return; session.Service satisfies it.
type TokenVerifier interface {
	UserFromToken(ctx context.Context, idToken string) (*auth.Token, bool)
}

// RegisterRoutes mounts the Firestore proxy endpoints.
func RegisterRoutes(r chi.Router, docs DocStore, verifier TokenVerifier, log *zap.SugaredLogger) {
	h := &handler{docs: docs, verifier: verifier, log: log}
	r.Post("/fsread", h.read)
	r.Post("/fswrite", h.write)
}

type handler struct {
	docs     DocStore
	verifier TokenVerifier
	log      *zap.SugaredLogger
}

type readRequest struct {
	IDToken  string   `json:"idToken"`
	Document []string `json:"document"`
}

type writeRequest struct {
	IDToken  string         `json:"idToken"`
	Document []string       `json:"document"`
	Data     map[string]any `json:"data"`
	Options  WriteOptions   `json:"options"`
}

func (h *handler) read(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if !h.validate(w, r, req.IDToken, req.Document) {
		return
	}
	data, err := h.docs.Read(r.Context(), req.Document)
	if err != nil {
		h.writeStoreError(w, "fsread", err)
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (h *handler) write(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if !h.validate(w, r, req.IDToken, req.Document) {
		return
	}
	if req.Data == nil {
		apierr.Write(w, http.StatusBadRequest, "invalid-data", "ValidationError", "Data is required and must be an object")
		return
	}
	if err := h.docs.Write(r.Context(), req.Document, req.Data, req.Options); err != nil {
		h.writeStoreError(w, "fswrite", err)
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// validate enforces the shared idToken/document checks; the token check
// runs last so malformed requests never hit the verifier.
func (h *handler) validate(w http.ResponseWriter, r *http.Request, idToken string, document []string) bool {
	if idToken == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-id-token", "ValidationError", "ID token is required")
		return false
	}
	if len(document) == 0 {
		apierr.Write(w, http.StatusBadRequest, "no-target-document", "ValidationError", "Document path is required and must be a non-empty array")
		return false
	}
	if _, ok := h.verifier.UserFromToken(r.Context(), idToken); !ok {
		apierr.Write(w, http.StatusUnauthorized, "invalid-token", "AuthError", "Invalid or expired ID token")
		return false
	}
	return true
}

func (h *handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	h.log.Errorw("firestore "+op+" failed", "err", err)
	if IsInvalidPath(err) {
		apierr.Write(w, http.StatusBadRequest, "no-target-document", "ValidationError", "Document path does not refer to a document")
		return
	}
	apierr.Write(w, http.StatusInternalServerError, "internal-error", "ServerError", "An unexpected error occurred")
}
