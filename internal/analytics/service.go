// internal/analytics/service.go
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultEndpoint = "https://www.google-analytics.com"

// Event is one Measurement Protocol event.
type Event struct {
	ClientID string
	Name     string
	Params   map[string]any
}

// Service forwards events to the Google Analytics Measurement Protocol
// collect endpoint. Fire-and-forget from the caller's perspective: a
// failed send is reported but never retried.
type Service struct {
	httpc         *http.Client
	log           *zap.SugaredLogger
	measurementID string
	apiSecret     string

	// Overridable for tests.
	endpoint string
}

func NewService(measurementID, apiSecret string, log *zap.SugaredLogger) *Service {
	return &Service{
		httpc:         &http.Client{Timeout: 30 * time.Second},
		log:           log,
		measurementID: measurementID,
		apiSecret:     apiSecret,
		endpoint:      defaultEndpoint,
	}
}

func (s *Service) Send(ctx context.Context, ev Event) error {
	params := ev.Params
	if params == nil {
		params = map[string]any{}
	}
	payload := map[string]any{
		"client_id": ev.ClientID,
		"events": []map[string]any{
			{"name": ev.Name, "params": params},
		},
	}
	b, _ := json.Marshal(payload)
	u := fmt.Sprintf("%s/mp/collect?measurement_id=%s&api_secret=%s", s.endpoint, s.measurementID, s.apiSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("measurement endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
