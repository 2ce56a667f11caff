// internal/session/service.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// FirebaseAuth is the slice of the Firebase Admin Auth client this
// service needs. *auth.Client satisfies it.
type FirebaseAuth interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	CustomToken(ctx context.Context, uid string) (string, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// ProviderError carries the error detail a Google identity endpoint
// returned for a rejected login/refresh attempt.
type ProviderError struct {
	Code string
	Full json.RawMessage
}

func (e *ProviderError) Error() string { return "firebase: " + e.Code }

// UserInfo is the shaped record /userinfo returns.
type UserInfo struct {
	UID           string         `json:"uid"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"emailVerified"`
	DisplayName   string         `json:"displayName"`
	PhotoURL      string         `json:"photoURL"`
	Disabled      bool           `json:"disabled"`
	Metadata      UserMetadata   `json:"metadata"`
	ProviderData  []ProviderInfo `json:"providerData"`
}

type UserMetadata struct {
	CreationTime   string `json:"creationTime"`
	LastSignInTime string `json:"lastSignInTime"`
}

type ProviderInfo struct {
	ProviderID  string `json:"providerId"`
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	PhotoURL    string `json:"photoURL"`
}

// Service proxies Firebase Authentication. Stateless: every method is a
// single round-trip with no retry.
type Service struct {
	fb        FirebaseAuth
	httpc     *http.Client
	log       *zap.SugaredLogger
	webAPIKey string

	// Overridable for tests.
	identityURL    string
	secureTokenURL string
}

func NewService(fb FirebaseAuth, webAPIKey string, log *zap.SugaredLogger) *Service {
	return &Service{
		fb:             fb,
		httpc:          &http.Client{Timeout: 30 * time.Second},
		log:            log,
		webAPIKey:      webAPIKey,
		identityURL:    defaultIdentityToolkitURL,
		secureTokenURL: defaultSecureTokenURL,
	}
}

// HasWebAPIKey reports whether the REST exchange endpoints are usable.
func (s *Service) HasWebAPIKey() bool { return s.webAPIKey != "" }

// UserFromToken verifies an ID token, rejecting revoked sessions. An
// invalid token is an expected outcome, not an error: it collapses into
// a false second return.
func (s *Service) UserFromToken(ctx context.Context, idToken string) (*auth.Token, bool) {
	tok, err := s.fb.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		s.log.Warnw("token verification failed", "err", err)
		return nil, false
	}
	return tok, true
}

// CustomLoginToken mints a custom token for the given user.
func (s *Service) CustomLoginToken(ctx context.Context, uid string) (string, error) {
	return s.fb.CustomToken(ctx, uid)
}

// RevokeUserTokens revokes every refresh token of the given user.
func (s *Service) RevokeUserTokens(ctx context.Context, uid string) error {
	if err := s.fb.RevokeRefreshTokens(ctx, uid); err != nil {
		return err
	}
	s.log.Infow("revoked refresh tokens", "uid", uid)
	return nil
}

// Login exchanges email/password for tokens via the Identity Toolkit
// REST API and passes the provider response through untouched.
func (s *Service) Login(ctx context.Context, email, password string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/accounts:signInWithPassword?key=%s", s.identityURL, s.webAPIKey)
	return s.exchange(ctx, u, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// Refresh exchanges a refresh token for a fresh ID token via the Secure
// Token REST API.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/token?key=%s", s.secureTokenURL, s.webAPIKey)
	return s.exchange(ctx, u, map[string]any{
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	})
}

func (s *Service) exchange(ctx context.Context, u string, body map[string]any) (json.RawMessage, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		code := "unknown-error"
		if err := json.Unmarshal(respBody, &env); err == nil && env.Error.Message != "" {
			code = env.Error.Message
		}
		return nil, &ProviderError{Code: code, Full: json.RawMessage(respBody)}
	}
	return json.RawMessage(respBody), nil
}

// User fetches the full Auth record for a verified token.
func (s *Service) User(ctx context.Context, uid string) (*UserInfo, error) {
	rec, err := s.fb.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	info := &UserInfo{
		UID:           rec.UID,
		Email:         rec.Email,
		EmailVerified: rec.EmailVerified,
		DisplayName:   rec.DisplayName,
		PhotoURL:      rec.PhotoURL,
		Disabled:      rec.Disabled,
	}
	if rec.UserMetadata != nil {
		info.Metadata = UserMetadata{
			CreationTime:   millisToRFC3339(rec.UserMetadata.CreationTimestamp),
			LastSignInTime: millisToRFC3339(rec.UserMetadata.LastLogInTimestamp),
		}
	}
	for _, p := range rec.ProviderUserInfo {
		info.ProviderData = append(info.ProviderData, ProviderInfo{
			ProviderID:  p.ProviderID,
			UID:         p.UID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
			PhotoURL:    p.PhotoURL,
		})
	}
	return info, nil
}

func millisToRFC3339(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
