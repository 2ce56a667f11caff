// internal/content/handler.go
package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apgate/pkg/apierr"
	"apgate/pkg/squidex"
)

// RegisterRoutes mounts the Squidex content proxy under /content. The
// target app is selected with ?app=; absent means the configured
// default.
func RegisterRoutes(r chi.Router, reg *squidex.Registry, log *zap.SugaredLogger) {
	h := &handler{reg: reg, log: log}
	r.Route("/content", func(cr chi.Router) {
		cr.Get("/config", h.config)
		cr.Get("/{schema}", h.list)
		cr.Post("/{schema}", h.create)
		cr.Get("/{schema}/{id}", h.get)
		cr.Put("/{schema}/{id}", h.update(false))
		cr.Patch("/{schema}/{id}", h.update(true))
		cr.Delete("/{schema}/{id}", h.remove)
		cr.Put("/{schema}/{id}/publish", h.transition((*squidex.Client).Publish))
		cr.Put("/{schema}/{id}/unpublish", h.transition((*squidex.Client).Unpublish))
		cr.Put("/{schema}/{id}/archive", h.transition((*squidex.Client).Archive))
		cr.Put("/{schema}/{id}/restore", h.transition((*squidex.Client).Restore))
	})
}

type handler struct {
	reg *squidex.Registry
	log *zap.SugaredLogger
}

func (h *handler) config(w http.ResponseWriter, r *http.Request) {
	apierr.JSON(w, http.StatusOK, map[string]any{
		"defaultUrl":    h.reg.DefaultURL(),
		"defaultApp":    h.reg.DefaultApp(),
		"availableApps": h.reg.Apps(),
		"apps":          h.reg.Describe(),
	})
}

// resolve extracts the app selector and returns the tenant client,
// writing the error response itself when resolution fails.
func (h *handler) resolve(w http.ResponseWriter, r *http.Request) (*squidex.Client, bool) {
	client, err := h.reg.Resolve(r.URL.Query().Get("app"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return client, true
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.schema(w, r)
	if !ok {
		return
	}
	client, ok := h.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := squidex.ListQuery{Filter: q.Get("$filter"), OrderBy: q.Get("$orderby")}
	var err error
	if query.Top, err = intParam(q.Get("$top")); err != nil {
		apierr.Write(w, http.StatusBadRequest, "invalid-query", "ValidationError", "$top must be an integer")
		return
	}
	if query.Skip, err = intParam(q.Get("$skip")); err != nil {
		apierr.Write(w, http.StatusBadRequest, "invalid-query", "ValidationError", "$skip must be an integer")
		return
	}
	list, err := client.List(r.Context(), schema, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierr.JSON(w, http.StatusOK, list)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := h.schemaAndID(w, r)
	if !ok {
		return
	}
	client, ok := h.resolve(w, r)
	if !ok {
		return
	}
	item, err := client.Get(r.Context(), schema, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierr.JSON(w, http.StatusOK, item)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.schema(w, r)
	if !ok {
		return
	}
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	client, ok := h.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := squidex.CreateOptions{
		Publish: q.Get("publish") == "true",
		ID:      q.Get("id"),
	}
	item, err := client.Create(r.Context(), schema, data, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierr.JSON(w, http.StatusCreated, item)
}

func (h *handler) update(patch bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, id, ok := h.schemaAndID(w, r)
		if !ok {
			return
		}
		data, ok := h.body(w, r)
		if !ok {
			return
		}
		opts := squidex.UpdateOptions{Patch: patch}
		if v := r.URL.Query().Get("expectedVersion"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				apierr.Write(w, http.StatusBadRequest, "invalid-query", "ValidationError", "expectedVersion must be an integer")
				return
			}
			opts.ExpectedVersion = &n
		}
		client, ok := h.resolve(w, r)
		if !ok {
			return
		}
		item, err := client.Update(r.Context(), schema, id, data, opts)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, item)
	}
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := h.schemaAndID(w, r)
	if !ok {
		return
	}
	client, ok := h.resolve(w, r)
	if !ok {
		return
	}
	opts := squidex.DeleteOptions{Permanent: r.URL.Query().Get("permanent") == "true"}
	if err := client.Delete(r.Context(), schema, id, opts); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) transition(fn func(*squidex.Client, context.Context, string, string) (*squidex.Content, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, id, ok := h.schemaAndID(w, r)
		if !ok {
			return
		}
		client, ok := h.resolve(w, r)
		if !ok {
			return
		}
		item, err := fn(client, r.Context(), schema, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, item)
	}
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) (string, bool) {
	schema := strings.TrimSpace(chi.URLParam(r, "schema"))
	if schema == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-schema", "ValidationError", "Schema name is required")
		return "", false
	}
	return schema, true
}

func (h *handler) schemaAndID(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	schema, ok := h.schema(w, r)
	if !ok {
		return "", "", false
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		apierr.Write(w, http.StatusBadRequest, "missing-content-id", "ValidationError", "Content ID is required")
		return "", "", false
	}
	return schema, id, true
}

// body requires a non-empty JSON object.
func (h *handler) body(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var data map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2<<20)).Decode(&data); err != nil || len(data) == 0 {
		apierr.Write(w, http.StatusBadRequest, "invalid-content-data", "ValidationError", "Content data is required and must be a non-empty object")
		return nil, false
	}
	return data, true
}

// writeError maps the client error taxonomy onto HTTP statuses:
// validation 400, unknown app 400, auth 401, not found 404, conflict
// 409, everything else 500.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Errorw("content proxy error", "method", r.Method, "path", r.URL.Path, "err", err)

	var unknown *squidex.UnknownTenantError
	if errors.As(err, &unknown) {
		apierr.Write(w, http.StatusBadRequest, "unknown-app", "UnknownTenantError", unknown.Error())
		return
	}
	var authErr *squidex.AuthenticationError
	if errors.As(err, &authErr) {
		apierr.Write(w, http.StatusUnauthorized, "squidex-auth-failed", "AuthenticationError", "Failed to authenticate with Squidex")
		return
	}
	var notFound *squidex.NotFoundError
	if errors.As(err, &notFound) {
		apierr.Write(w, http.StatusNotFound, "not-found", "NotFoundError", notFound.Error())
		return
	}
	var conflict *squidex.ConflictError
	if errors.As(err, &conflict) {
		apierr.Write(w, http.StatusConflict, "version-conflict", "ConflictError", conflict.Error())
		return
	}
	var remote *squidex.RemoteCallError
	if errors.As(err, &remote) {
		apierr.Write(w, http.StatusInternalServerError, "squidex-error", "RemoteCallError", remote.Error())
		return
	}
	var transport *squidex.TransportError
	if errors.As(err, &transport) {
		apierr.Write(w, http.StatusInternalServerError, "upstream-unreachable", "TransportError", "Squidex could not be reached")
		return
	}
	apierr.Write(w, http.StatusInternalServerError, "internal-error", "ServerError", "An unexpected error occurred")
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
