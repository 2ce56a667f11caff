// pkg/squidex/client_test.go
package squidex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSquidex stands in for both the identity server and the content
// API of one app.
type fakeSquidex struct {
	srv        *httptest.Server
	tokenCalls atomic.Int64
	expiresIn  int64
	rejectAuth bool
	handler    http.HandlerFunc
	lastReq    struct {
		method  string
		path    string
		query   string
		ifMatch string
		auth    string
		body    []byte
	}
}

func newFakeSquidex(t *testing.T) *fakeSquidex {
	t.Helper()
	f := &fakeSquidex{expiresIn: 3600}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/identity-server/connect/token" {
			f.tokenCalls.Add(1)
			if f.rejectAuth {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			require.NoError(t, r.ParseForm())
			require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			require.Equal(t, "squidex-api", r.PostForm.Get("scope"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-" + r.PostForm.Get("client_id"),
				"token_type":   "Bearer",
				"expires_in":   f.expiresIn,
			})
			return
		}
		f.lastReq.method = r.Method
		f.lastReq.path = r.URL.Path
		f.lastReq.query = r.URL.RawQuery
		f.lastReq.ifMatch = r.Header.Get("If-Match")
		f.lastReq.auth = r.Header.Get("Authorization")
		f.lastReq.body, _ = io.ReadAll(r.Body)
		if f.handler != nil {
			f.handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1","status":"Draft","data":{"title":{"iv":"x"}},"version":1}`))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSquidex) client() *Client {
	return NewClient(Credentials{
		AppName:      "games",
		ClientID:     "games:default",
		ClientSecret: "secret",
		BaseURL:      f.srv.URL,
	}, zap.NewNop().Sugar())
}

func TestClientTokenLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("token is fetched once and reused", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		_, err := c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)
		_, err = c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)

		require.Equal(t, int64(1), f.tokenCalls.Load())
		require.Equal(t, "Bearer tok-games:default", f.lastReq.auth)
	})

	t.Run("expired token triggers re-auth", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()
		base := time.Now()
		c.now = func() time.Time { return base }

		_, err := c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), f.tokenCalls.Load())

		// 3600s lifetime minus the 300s margin: still valid one
		// second before the adjusted deadline.
		c.now = func() time.Time { return base.Add(3600*time.Second - tokenSafetyMargin - time.Second) }
		_, err = c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), f.tokenCalls.Load())

		c.now = func() time.Time { return base.Add(3600*time.Second - tokenSafetyMargin + time.Second) }
		_, err = c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, int64(2), f.tokenCalls.Load())
	})

	t.Run("rejected credentials surface as AuthenticationError", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.rejectAuth = true
		c := f.client()

		_, err := c.Get(ctx, "articles", "doc-1")
		var ae *AuthenticationError
		require.ErrorAs(t, err, &ae)
		require.Equal(t, "games", ae.App)
		require.Equal(t, http.StatusBadRequest, ae.Status)
	})

	t.Run("unreachable server yields AuthenticationError", func(t *testing.T) {
		c := NewClient(Credentials{
			AppName: "games",
			BaseURL: "http://127.0.0.1:1",
		}, zap.NewNop().Sugar())

		_, err := c.Get(ctx, "articles", "doc-1")
		var ae *AuthenticationError
		require.ErrorAs(t, err, &ae)
	})
}

func TestClientContentOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("list encodes odata paging", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"total":2,"items":[{"id":"a","version":1},{"id":"b","version":4}]}`))
		}
		c := f.client()

		list, err := c.List(ctx, "articles", ListQuery{Top: 10, Skip: 5, Filter: "data/slug/iv eq 'x'", OrderBy: "created desc"})
		require.NoError(t, err)
		require.Equal(t, int64(2), list.Total)
		require.Len(t, list.Items, 2)
		require.Equal(t, "/api/content/games/articles", f.lastReq.path)
		require.Contains(t, f.lastReq.query, "%24top=10")
		require.Contains(t, f.lastReq.query, "%24skip=5")
		require.Contains(t, f.lastReq.query, "%24filter=")
		require.Contains(t, f.lastReq.query, "%24orderby=")
	})

	t.Run("create passes publish and id through", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		item, err := c.Create(ctx, "articles", map[string]any{"title": map[string]any{"iv": "x"}}, CreateOptions{Publish: true, ID: "custom-id"})
		require.NoError(t, err)
		require.Equal(t, "doc-1", item.ID)
		require.Equal(t, http.MethodPost, f.lastReq.method)
		require.Contains(t, f.lastReq.query, "publish=true")
		require.Contains(t, f.lastReq.query, "id=custom-id")
	})

	t.Run("update uses PUT without If-Match by default", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		_, err := c.Update(ctx, "articles", "doc-1", map[string]any{"k": "v"}, UpdateOptions{})
		require.NoError(t, err)
		require.Equal(t, http.MethodPut, f.lastReq.method)
		require.Empty(t, f.lastReq.ifMatch)
	})

	t.Run("patch with expected version sends If-Match", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		v := int64(7)
		_, err := c.Update(ctx, "articles", "doc-1", map[string]any{"k": "v"}, UpdateOptions{Patch: true, ExpectedVersion: &v})
		require.NoError(t, err)
		require.Equal(t, http.MethodPatch, f.lastReq.method)
		require.Equal(t, "7", f.lastReq.ifMatch)
	})

	t.Run("delete permanent", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
		c := f.client()

		require.NoError(t, c.Delete(ctx, "articles", "doc-1", DeleteOptions{Permanent: true}))
		require.Equal(t, http.MethodDelete, f.lastReq.method)
		require.Contains(t, f.lastReq.query, "permanent=true")
	})

	t.Run("status transitions PUT the action path", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		_, err := c.Publish(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, http.MethodPut, f.lastReq.method)
		require.Equal(t, "/api/content/games/articles/doc-1/publish", f.lastReq.path)
		require.JSONEq(t, `{}`, string(f.lastReq.body))

		_, err = c.Unpublish(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, "/api/content/games/articles/doc-1/unpublish", f.lastReq.path)

		_, err = c.Archive(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, "/api/content/games/articles/doc-1/archive", f.lastReq.path)

		_, err = c.Restore(ctx, "articles", "doc-1")
		require.NoError(t, err)
		require.Equal(t, "/api/content/games/articles/doc-1/restore", f.lastReq.path)
	})
}

func TestClientErrorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("404 becomes NotFoundError", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }
		c := f.client()

		_, err := c.Get(ctx, "articles", "missing")
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		require.Equal(t, "articles", nf.Schema)
		require.Equal(t, "missing", nf.ID)
	})

	t.Run("412 becomes ConflictError", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusPreconditionFailed) }
		c := f.client()

		v := int64(3)
		_, err := c.Update(ctx, "articles", "doc-1", map[string]any{"k": "v"}, UpdateOptions{ExpectedVersion: &v})
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("409 becomes ConflictError", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusConflict) }
		c := f.client()

		_, err := c.Create(ctx, "articles", map[string]any{}, CreateOptions{ID: "dup"})
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("other statuses stay RemoteCallError", func(t *testing.T) {
		f := newFakeSquidex(t)
		f.handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"validation failed"}`))
		}
		c := f.client()

		_, err := c.Get(ctx, "articles", "doc-1")
		var rc *RemoteCallError
		require.ErrorAs(t, err, &rc)
		require.Equal(t, http.StatusBadRequest, rc.Status)
		require.Contains(t, rc.Body, "validation failed")
	})

	t.Run("connection failure after auth is TransportError", func(t *testing.T) {
		f := newFakeSquidex(t)
		c := f.client()

		// Prime the token, then point the client at a dead address.
		_, err := c.Get(ctx, "articles", "doc-1")
		require.NoError(t, err)
		c.creds.BaseURL = "http://127.0.0.1:1"

		_, err = c.Get(ctx, "articles", "doc-1")
		var te *TransportError
		require.ErrorAs(t, err, &te)
	})
}
