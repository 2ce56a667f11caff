// pkg/squidex/client.go
package squidex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	tokenScope = "squidex-api"
	// Tokens are treated as expired this long before the server would
	// actually reject them.
	tokenSafetyMargin = 5 * time.Minute
	requestTimeout    = 30 * time.Second
)

type bearerToken struct {
	value     string
	expiresAt time.Time
}

// Client talks to the content API of a single Squidex app. It owns one
// bearer token and re-authenticates lazily when the token's
// safety-margin-adjusted expiry has passed. The mutex only guards the
// token field; it is not held across network calls, so two concurrent
// callers seeing an expired token may both authenticate — the second
// grant simply replaces the first.
type Client struct {
	creds Credentials
	httpc *http.Client
	log   *zap.SugaredLogger
	now   func() time.Time

	mu    sync.Mutex
	token *bearerToken
}

func NewClient(creds Credentials, log *zap.SugaredLogger) *Client {
	return &Client{
		creds: creds,
		httpc: &http.Client{Timeout: requestTimeout},
		log:   log,
		now:   time.Now,
	}
}

// App returns the app name this client is bound to.
func (c *Client) App() string { return c.creds.AppName }

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if t := c.token; t != nil && c.now().Before(t.expiresAt) {
		v := t.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	t, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
	return t.value, nil
}

// authenticate performs one client-credentials grant. No retry: a failed
// attempt propagates to the caller.
func (c *Client) authenticate(ctx context.Context) (*bearerToken, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"scope":         {tokenScope},
	}
	endpoint := c.creds.BaseURL + "/identity-server/connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthenticationError{App: c.creds.AppName, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		tokenRefreshes.WithLabelValues(c.creds.AppName, "error").Inc()
		return nil, &AuthenticationError{App: c.creds.AppName, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tokenRefreshes.WithLabelValues(c.creds.AppName, "error").Inc()
		return nil, &AuthenticationError{App: c.creds.AppName, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		tokenRefreshes.WithLabelValues(c.creds.AppName, "error").Inc()
		return nil, &AuthenticationError{App: c.creds.AppName, Message: "malformed token response"}
	}
	tokenRefreshes.WithLabelValues(c.creds.AppName, "ok").Inc()
	c.log.Infow("authenticated with squidex", "app", c.creds.AppName)
	return &bearerToken{
		value:     tr.AccessToken,
		expiresAt: c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin),
	}, nil
}

// call issues one authorized request against the content API. path is
// relative to /api/content/{app}. A transport failure yields
// TransportError; a non-2xx response yields RemoteCallError.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, hdr http.Header) ([]byte, error) {
	tok, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.creds.BaseURL + "/api/content/" + c.creds.AppName + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: method + " " + path, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(c.creds.AppName, method, "transport").Inc()
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	upstreamRequests.WithLabelValues(c.creds.AppName, method, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteCallError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// refine maps the well-known upstream statuses onto their specialized
// error kinds. Squidex reports If-Match failures as 412.
func refine(err error, schema, id string) error {
	var rc *RemoteCallError
	if errors.As(err, &rc) {
		switch rc.Status {
		case http.StatusNotFound:
			return &NotFoundError{Schema: schema, ID: id}
		case http.StatusConflict, http.StatusPreconditionFailed:
			return &ConflictError{Schema: schema, ID: id}
		}
	}
	return err
}

func decodeContent(b []byte) (*Content, error) {
	var item Content
	if err := json.Unmarshal(b, &item); err != nil {
		return nil, &RemoteCallError{Status: http.StatusOK, Body: "malformed content item: " + err.Error()}
	}
	return &item, nil
}

// List fetches content items from a schema.
func (c *Client) List(ctx context.Context, schema string, q ListQuery) (*ContentList, error) {
	b, err := c.call(ctx, http.MethodGet, "/"+schema, q.values(), nil, nil)
	if err != nil {
		return nil, refine(err, schema, "")
	}
	var list ContentList
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, &RemoteCallError{Status: http.StatusOK, Body: "malformed content list: " + err.Error()}
	}
	return &list, nil
}

// Get fetches a single content item by id.
func (c *Client) Get(ctx context.Context, schema, id string) (*Content, error) {
	b, err := c.call(ctx, http.MethodGet, "/"+schema+"/"+id, nil, nil, nil)
	if err != nil {
		return nil, refine(err, schema, id)
	}
	return decodeContent(b)
}

// Create posts a new content item.
func (c *Client) Create(ctx context.Context, schema string, data map[string]any, opts CreateOptions) (*Content, error) {
	q := url.Values{}
	if opts.Publish {
		q.Set("publish", "true")
	}
	if opts.ID != "" {
		q.Set("id", opts.ID)
	}
	b, err := c.call(ctx, http.MethodPost, "/"+schema, q, data, nil)
	if err != nil {
		return nil, refine(err, schema, "")
	}
	return decodeContent(b)
}

// Update replaces (PUT) or patches (PATCH) a content item. When
// ExpectedVersion is set it is sent as an If-Match precondition.
func (c *Client) Update(ctx context.Context, schema, id string, data map[string]any, opts UpdateOptions) (*Content, error) {
	method := http.MethodPut
	if opts.Patch {
		method = http.MethodPatch
	}
	var hdr http.Header
	if opts.ExpectedVersion != nil {
		hdr = http.Header{"If-Match": {strconv.FormatInt(*opts.ExpectedVersion, 10)}}
	}
	b, err := c.call(ctx, method, "/"+schema+"/"+id, nil, data, hdr)
	if err != nil {
		return nil, refine(err, schema, id)
	}
	return decodeContent(b)
}

// Delete removes a content item. Permanent bypasses the trash.
func (c *Client) Delete(ctx context.Context, schema, id string, opts DeleteOptions) error {
	q := url.Values{}
	if opts.Permanent {
		q.Set("permanent", "true")
	}
	_, err := c.call(ctx, http.MethodDelete, "/"+schema+"/"+id, q, nil, nil)
	if err != nil {
		return refine(err, schema, id)
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, schema, id string) (*Content, error) {
	return c.changeStatus(ctx, schema, id, "publish")
}

func (c *Client) Unpublish(ctx context.Context, schema, id string) (*Content, error) {
	return c.changeStatus(ctx, schema, id, "unpublish")
}

func (c *Client) Archive(ctx context.Context, schema, id string) (*Content, error) {
	return c.changeStatus(ctx, schema, id, "archive")
}

func (c *Client) Restore(ctx context.Context, schema, id string) (*Content, error) {
	return c.changeStatus(ctx, schema, id, "restore")
}

func (c *Client) changeStatus(ctx context.Context, schema, id, action string) (*Content, error) {
	b, err := c.call(ctx, http.MethodPut, "/"+schema+"/"+id+"/"+action, nil, map[string]any{}, nil)
	if err != nil {
		return nil, refine(err, schema, id)
	}
	return decodeContent(b)
}
