package drive

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	driveScope   = "https://www.googleapis.com/auth/drive"
	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime is the validity window claimed on each signed
	// assertion. Google rejects anything over one hour.
	assertionLifetime = time.Hour

	// tokenExpiryBuffer refreshes tokens slightly early to avoid using a
	// token that expires mid-request.
	tokenExpiryBuffer = 5 * time.Minute
)

// Authenticator provides bearer tokens for Drive API requests.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// AccessToken represents a cached OAuth access token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// IsExpired reports whether the token needs refreshing.
func (t *AccessToken) IsExpired() bool {
	if t == nil || t.Token == "" {
		return true
	}
	return time.Now().After(t.ExpiresAt.Add(-tokenExpiryBuffer))
}

// ServiceAccountAuth implements the JWT-bearer grant for a Google service
// account. It signs an RS256 assertion with the account's private key and
// exchanges it for an access token, caching the token until expiry.
type ServiceAccountAuth struct {
	key        serviceAccountKey
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	mu    sync.Mutex
	token *AccessToken
}

// NewServiceAccountAuth loads the service account key file and prepares the
// signing key.
func NewServiceAccountAuth(keyFile string) (*ServiceAccountAuth, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account file is missing client_email or private_key")
	}
	if key.TokenURI == "" {
		key.TokenURI = "https://oauth2.googleapis.com/token"
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	return &ServiceAccountAuth{
		key:        key,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Token returns a valid access token, refreshing it if expired.
func (a *ServiceAccountAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.token.IsExpired() {
		return a.token.Token, nil
	}

	token, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	return token.Token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (a *ServiceAccountAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
}

func (a *ServiceAccountAuth) exchange(ctx context.Context) (*AccessToken, error) {
	assertion, err := a.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.key.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     "token exchange failed",
			Body:       string(body),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}

	return &AccessToken{
		Token:     tokenResp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

func (a *ServiceAccountAuth) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   a.key.ClientEmail,
		"scope": driveScope,
		"aud":   a.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
