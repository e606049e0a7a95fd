package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Credentials holds everything needed for the OAuth password grant.
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	LoginURL      string
}

// Session is an authenticated Salesforce session.
type Session struct {
	AccessToken string
	InstanceURL string
}

// Authenticator provides Salesforce sessions.
type Authenticator interface {
	Session(ctx context.Context) (*Session, error)
	Invalidate()
}

// PasswordAuth implements the OAuth username-password flow. The session is
// cached until Invalidate is called; Salesforce does not report an expiry on
// this grant, so expiry shows up as a 401 on a later request.
type PasswordAuth struct {
	creds      Credentials
	httpClient *http.Client

	mu      sync.Mutex
	session *Session
}

// NewPasswordAuth creates an authenticator for the given credentials.
func NewPasswordAuth(creds Credentials) *PasswordAuth {
	if creds.LoginURL == "" {
		creds.LoginURL = "https://login.salesforce.com"
	}
	return &PasswordAuth{
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Session returns a cached session, authenticating on first use.
func (a *PasswordAuth) Session(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}

	session, err := a.login(ctx)
	if err != nil {
		return nil, err
	}
	a.session = session
	return session, nil
}

// Invalidate drops the cached session so the next call logs in again.
func (a *PasswordAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
}

func (a *PasswordAuth) login(ctx context.Context) (*Session, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", a.creds.ClientID)
	form.Set("client_secret", a.creds.ClientSecret)
	form.Set("username", a.creds.Username)
	form.Set("password", a.creds.Password+a.creds.SecurityToken)

	endpoint := strings.TrimSuffix(a.creds.LoginURL, "/") + "/services/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     "login failed",
			Body:       string(body),
		}
	}

	var loginResp struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if loginResp.AccessToken == "" || loginResp.InstanceURL == "" {
		return nil, fmt.Errorf("login response missing access token or instance URL")
	}

	return &Session{
		AccessToken: loginResp.AccessToken,
		InstanceURL: strings.TrimSuffix(loginResp.InstanceURL, "/"),
	}, nil
}
