package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"realtime-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated user record attached to a connection after a
// successful credential verification. The auth service remains the authority;
// this is a point-in-time copy.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// Verifier validates bearer tokens against the auth service, falling back to
// local signature/expiry verification with the shared secret when the auth
// service cannot be reached. The fallback keeps the realtime service usable
// during an auth service outage.
type Verifier struct {
	serviceURL string
	secret     []byte
	cacheTTL   time.Duration
	httpClient *http.Client
	cache      *redis.Client
}

// NewVerifier builds a Verifier. cache may be nil; the Redis token cache is
// advisory and all cache errors are ignored.
func NewVerifier(cfg *config.AuthConfig, cache *redis.Client) *Verifier {
	return &Verifier{
		serviceURL: cfg.ServiceURL,
		secret:     []byte(cfg.JWTSecret),
		cacheTTL:   cfg.CacheTTL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cache:      cache,
	}
}

// Verify resolves a bearer token to an Identity. It returns ErrInvalidToken
// when both the remote and the local path reject the token.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if identity := v.cachedIdentity(ctx, token); identity != nil {
		return identity, nil
	}

	identity, err := v.verifyRemote(ctx, token)
	if err != nil {
		slog.Debug("Remote token verification failed, falling back to local", "error", err)
		identity, err = v.verifyLocal(token)
	}
	if err != nil {
		return nil, err
	}

	v.storeIdentity(ctx, token, identity)
	return identity, nil
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.serviceURL+"/verify-token", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode auth service response: %w", err)
	}
	if identity.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &identity, nil
}

func (v *Verifier) verifyLocal(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	return &Identity{UserID: userID, Email: email}, nil
}

func (v *Verifier) cachedIdentity(ctx context.Context, token string) *Identity {
	if v.cache == nil {
		return nil
	}
	data, err := v.cache.Get(ctx, cacheKey(token)).Result()
	if err != nil {
		return nil
	}
	var identity Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil || identity.UserID == "" {
		return nil
	}
	return &identity
}

func (v *Verifier) storeIdentity(ctx context.Context, token string, identity *Identity) {
	if v.cache == nil {
		return
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKey(token), data, v.cacheTTL).Err(); err != nil {
		slog.Debug("Failed to cache verified identity", "error", err)
	}
}

func cacheKey(token string) string {
	return "token_user:" + token
}
