package drive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// writeServiceAccountFile generates a throwaway RSA key and writes a minimal
// service account key file pointing at the given token endpoint.
func writeServiceAccountFile(t *testing.T, tokenURI string) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	content, err := json.Marshal(map[string]string{
		"client_email": "sync@test-project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"token_uri":    tokenURI,
	})
	if err != nil {
		t.Fatalf("failed to marshal key file: %v", err)
	}

	path := filepath.Join(t.TempDir(), "service-account.json")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path, key
}

func TestServiceAccountAuthToken(t *testing.T) {
	exchanges := 0
	var gotAssertion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if grant := r.PostForm.Get("grant_type"); grant != jwtGrantType {
			t.Errorf("grant_type = %q", grant)
		}
		gotAssertion = r.PostForm.Get("assertion")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"drive-token","expires_in":3600}`)
	}))
	defer server.Close()

	keyFile, key := writeServiceAccountFile(t, server.URL)
	auth, err := NewServiceAccountAuth(keyFile)
	if err != nil {
		t.Fatalf("NewServiceAccountAuth failed: %v", err)
	}
	auth.httpClient = server.Client()

	token, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "drive-token" {
		t.Errorf("token = %q", token)
	}

	// The assertion must be RS256-signed with the service account key and
	// carry the Drive scope.
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(gotAssertion, claims, func(tok *jwt.Token) (any, error) {
		if tok.Method.Alg() != "RS256" {
			return nil, fmt.Errorf("alg = %s", tok.Method.Alg())
		}
		return &key.PublicKey, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("assertion does not verify: %v", err)
	}
	if claims["iss"] != "sync@test-project.iam.gserviceaccount.com" {
		t.Errorf("iss = %v", claims["iss"])
	}
	if claims["scope"] != driveScope {
		t.Errorf("scope = %v", claims["scope"])
	}
	if claims["aud"] != server.URL {
		t.Errorf("aud = %v", claims["aud"])
	}

	// Second call serves from cache.
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("cached Token failed: %v", err)
	}
	if exchanges != 1 {
		t.Errorf("token exchanges = %d, want 1 (cached)", exchanges)
	}

	// Invalidate forces a fresh exchange.
	auth.Invalidate()
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("Token after Invalidate failed: %v", err)
	}
	if exchanges != 2 {
		t.Errorf("token exchanges = %d, want 2", exchanges)
	}
}

func TestNewServiceAccountAuthRejectsBadFiles(t *testing.T) {
	if _, err := NewServiceAccountAuth(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing key file should fail")
	}

	path := filepath.Join(t.TempDir(), "incomplete.json")
	if err := os.WriteFile(path, []byte(`{"client_email":"x@y"}`), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := NewServiceAccountAuth(path); err == nil {
		t.Error("key file without a private key should fail")
	}
}

func TestAccessTokenIsExpired(t *testing.T) {
	var nilToken *AccessToken
	if !nilToken.IsExpired() {
		t.Error("nil token must read as expired")
	}
	fresh := &AccessToken{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}
	if fresh.IsExpired() {
		t.Error("fresh token must not read as expired")
	}
	nearExpiry := &AccessToken{Token: "t", ExpiresAt: time.Now().Add(time.Minute)}
	if !nearExpiry.IsExpired() {
		t.Error("token inside the refresh buffer must read as expired")
	}
}
