package gcpauth

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

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
)

const (
	// ScopeCloudPlatform is the OAuth scope used for speech synthesis.
	ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// expiryLeeway forces a refresh shortly before the token actually
	// expires so in-flight synthesis calls never carry a stale bearer.
	expiryLeeway = 60 * time.Second

	assertionLifetime = time.Hour
	refreshTimeout    = 15 * time.Second
)

// TokenSource caches a bearer token shared by all concurrent synthesis calls.
// Refreshes are deduplicated through a single-flight group so racing callers
// trigger at most one token exchange.
type TokenSource struct {
	creds      *Credentials
	scope      string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

func NewTokenSource(creds *Credentials, scope string) *TokenSource {
	if scope == "" {
		scope = ScopeCloudPlatform
	}
	return &TokenSource{
		creds:      creds,
		scope:      scope,
		httpClient: &http.Client{Timeout: refreshTimeout},
		now:        time.Now,
	}
}

// Token returns a valid bearer token, refreshing it when expired.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.now().Before(s.expiry.Add(-expiryLeeway)) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonProviderAuth)
	}
	return v.(string), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	// A waiter may land here just after another caller refreshed.
	s.mu.Lock()
	if s.token != "" && s.now().Before(s.expiry.Add(-expiryLeeway)) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeJWTBearer)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange returned %s: %s", resp.Status, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	s.mu.Lock()
	s.token = tr.AccessToken
	s.expiry = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	s.mu.Unlock()

	return tr.AccessToken, nil
}

func (s *TokenSource) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.creds.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.creds.ClientEmail,
		"scope": s.scope,
		"aud":   s.creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
