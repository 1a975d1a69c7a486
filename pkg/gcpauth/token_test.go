package gcpauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testCredentials(t *testing.T, tokenURI string) *Credentials {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return &Credentials{
		ClientEmail: "narrator@test.iam.gserviceaccount.com",
		PrivateKey:  string(keyPEM),
		TokenURI:    tokenURI,
	}
}

func TestTokenRefreshSingleFlight(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("assertion") == "" {
			t.Errorf("expected signed assertion in token request")
		}
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer srv.Close()

	src := NewTokenSource(testCredentials(t, srv.URL), "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := src.Token(t.Context())
			if err != nil {
				t.Errorf("token: %v", err)
				return
			}
			if token != "tok-1" {
				t.Errorf("unexpected token %q", token)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one token exchange, got %d", got)
	}

	// Cached token is reused without another exchange.
	if _, err := src.Token(t.Context()); err != nil {
		t.Fatalf("token: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected cached token, got %d exchanges", got)
	}
}

func TestTokenRefreshOnExpiry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-2","expires_in":3600}`))
	}))
	defer srv.Close()

	src := NewTokenSource(testCredentials(t, srv.URL), "")
	if _, err := src.Token(t.Context()); err != nil {
		t.Fatalf("token: %v", err)
	}

	// Move the clock past expiry; the next call must mint a fresh token.
	src.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := src.Token(t.Context()); err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected refresh after expiry, got %d exchanges", got)
	}
}

func TestTokenExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	src := NewTokenSource(testCredentials(t, srv.URL), "")
	if _, err := src.Token(t.Context()); err == nil {
		t.Fatalf("expected error for failed exchange")
	}
}
