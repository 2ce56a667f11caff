// internal/analytics/service_test.go
package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSend(t *testing.T) {
	t.Parallel()

	t.Run("posts the measurement payload", func(t *testing.T) {
		var got struct {
			ClientID string `json:"client_id"`
			Events   []struct {
				Name   string         `json:"name"`
				Params map[string]any `json:"params"`
			} `json:"events"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/mp/collect", r.URL.Path)
			require.Equal(t, "G-TEST", r.URL.Query().Get("measurement_id"))
			require.Equal(t, "secret", r.URL.Query().Get("api_secret"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		svc := NewService("G-TEST", "secret", zap.NewNop().Sugar())
		svc.endpoint = srv.URL
		err := svc.Send(context.Background(), Event{
			ClientID: "c-1",
			Name:     "level_up",
			Params:   map[string]any{"level": float64(3)},
		})
		require.NoError(t, err)
		require.Equal(t, "c-1", got.ClientID)
		require.Len(t, got.Events, 1)
		require.Equal(t, "level_up", got.Events[0].Name)
		require.Equal(t, float64(3), got.Events[0].Params["level"])
	})

	t.Run("nil params become an empty object", func(t *testing.T) {
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		svc := NewService("G-TEST", "secret", zap.NewNop().Sugar())
		svc.endpoint = srv.URL
		require.NoError(t, svc.Send(context.Background(), Event{ClientID: "c-1", Name: "ping"}))
		events := body["events"].([]any)
		require.Equal(t, map[string]any{}, events[0].(map[string]any)["params"])
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		t.Cleanup(srv.Close)

		svc := NewService("G-TEST", "secret", zap.NewNop().Sugar())
		svc.endpoint = srv.URL
		require.Error(t, svc.Send(context.Background(), Event{ClientID: "c-1", Name: "ping"}))
	})
}
