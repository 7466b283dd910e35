package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrUnauthenticated is returned for unknown, expired or revoked tokens
var ErrUnauthenticated = errors.New("unauthorized")

// TokenService mints and validates session tokens. Sessions live in process
// memory keyed by the SHA-256 hash of a random secret; the bearer value is
// an HS256 JWT wrapping that hash.
type TokenService struct {
	secretKey []byte

	// TokenDuration is how long a session stays valid. Default: 24 hours
	TokenDuration time.Duration

	mu       sync.RWMutex
	sessions map[string]session
	now      func() time.Time
}

type session struct {
	contractorID int64
	expiresAt    time.Time
}

// IssuedToken is what a successful login hands back to the client
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenType string    `json:"tokenType"` // "Bearer"
}

// JWTClaims represents the claims in our session tokens
type JWTClaims struct {
	ContractorID int64  `json:"contractor_id"`
	TokenHash    string `json:"token_hash"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string, ttl time.Duration) (*TokenService, error) {
	if secretKey == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secretKey:     []byte(secretKey),
		TokenDuration: ttl,
		sessions:      make(map[string]session),
		now:           time.Now,
	}, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Issue creates a session for the contractor and returns its bearer token
func (ts *TokenService) Issue(contractorID int64) (*IssuedToken, error) {
	raw, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	tokenHash := hashToken(raw)
	now := ts.now()
	expiresAt := now.Add(ts.TokenDuration)

	claims := &JWTClaims{
		ContractorID: contractorID,
		TokenHash:    tokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "leadintake",
			Subject:   "contractor_" + strconv.FormatInt(contractorID, 10),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	ts.mu.Lock()
	ts.sessions[tokenHash] = session{contractorID: contractorID, expiresAt: expiresAt}
	ts.mu.Unlock()

	return &IssuedToken{Token: signed, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// Authenticate resolves a bearer token to the contractor it was issued for
func (ts *TokenService) Authenticate(tokenString string) (int64, error) {
	claims, err := ts.parseTokenClaims(tokenString)
	if err != nil {
		return 0, ErrUnauthenticated
	}

	ts.mu.RLock()
	s, ok := ts.sessions[claims.TokenHash]
	ts.mu.RUnlock()
	if !ok || !ts.now().Before(s.expiresAt) || s.contractorID != claims.ContractorID {
		return 0, ErrUnauthenticated
	}
	return s.contractorID, nil
}

// Revoke ends the session behind a token. Revoking an unknown token is an
// authentication failure.
func (ts *TokenService) Revoke(tokenString string) error {
	claims, err := ts.parseTokenClaims(tokenString)
	if err != nil {
		return ErrUnauthenticated
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.sessions[claims.TokenHash]; !ok {
		return ErrUnauthenticated
	}
	delete(ts.sessions, claims.TokenHash)
	return nil
}

// CleanupExpiredTokens drops expired sessions and reports how many went
func (ts *TokenService) CleanupExpiredTokens() int {
	now := ts.now()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	removed := 0
	for h, s := range ts.sessions {
		if !now.Before(s.expiresAt) {
			delete(ts.sessions, h)
			removed++
		}
	}
	return removed
}

// ActiveSessions reports the number of live sessions
func (ts *TokenService) ActiveSessions() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.sessions)
}

// parseTokenClaims verifies the signature and registered claims
func (ts *TokenService) parseTokenClaims(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	}, jwt.WithTimeFunc(ts.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.TokenHash == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// StartCleanupScheduler sweeps expired sessions every interval until ctx ends
func (ts *TokenService) StartCleanupScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := ts.CleanupExpiredTokens(); n > 0 {
					log.Debug().Int("removed", n).Msg("Cleaned up expired sessions")
				}
			}
		}
	}()
}
