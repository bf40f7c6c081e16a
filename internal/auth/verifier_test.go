package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realtime-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func newTestVerifier(serviceURL string) *Verifier {
	return NewVerifier(&config.AuthConfig{
		ServiceURL:     serviceURL,
		RequestTimeout: 500 * time.Millisecond,
		JWTSecret:      testSecret,
		CacheTTL:       time.Minute,
	}, nil)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestVerifyRemoteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer remote-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"user-1","email":"one@example.com"}`))
	}))
	defer server.Close()

	verifier := newTestVerifier(server.URL)

	identity, err := verifier.Verify(context.Background(), "remote-token")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if identity.UserID != "user-1" || identity.Email != "one@example.com" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestVerifyFallsBackToLocalWhenAuthServiceUnreachable(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	verifier := newTestVerifier(server.URL)

	token := signedToken(t, jwt.MapClaims{
		"sub":   "user-2",
		"email": "two@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("expected local fallback to succeed, got %v", err)
	}
	if identity.UserID != "user-2" || identity.Email != "two@example.com" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestVerifyFallsBackToLocalOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	verifier := newTestVerifier(server.URL)

	token := signedToken(t, jwt.MapClaims{
		"sub": "user-3",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("expected local fallback to succeed, got %v", err)
	}
	if identity.UserID != "user-3" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestVerifyRejectsExpiredTokenOnBothPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	verifier := newTestVerifier(server.URL)

	token := signedToken(t, jwt.MapClaims{
		"sub": "user-4",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	verifier := newTestVerifier(server.URL)

	if _, err := verifier.Verify(context.Background(), "not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	verifier := newTestVerifier("http://localhost:0")

	if _, err := verifier.Verify(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsTokenWithoutSubject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	verifier := newTestVerifier(server.URL)

	token := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
