package auth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// SessionClaims are the claims embedded in a user session JWT, per spec
// §4.1: issue_jwt encodes {user_id, workspace_id, role, exp}.
type SessionClaims struct {
	UserID      string `json:"user_id"`
	WorkspaceID int64  `json:"workspace_id"`
	Role        string `json:"role"`
}

// SessionManager issues and validates self-signed session JWTs using
// HMAC-SHA256. GraceSecrets holds previously-active signing secrets so a
// secret rotation does not immediately invalidate tokens issued under the
// old secret; ValidateToken tries the current secret first, then each grace
// secret in order.
type SessionManager struct {
	signingKey  []byte
	graceKeys   [][]byte
	maxAge      time.Duration
	issuer      string
}

// NewSessionManager creates a session manager. The secret must be at least
// 32 bytes. graceSecrets are additional secrets accepted for validation
// only (never used to sign new tokens), supporting rotation without
// invalidating in-flight sessions.
func NewSessionManager(secret string, graceSecrets []string, maxAge time.Duration) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}

	grace := make([][]byte, 0, len(graceSecrets))
	for _, g := range graceSecrets {
		if len(g) < 32 {
			return nil, fmt.Errorf("grace secret must be at least 32 bytes, got %d", len(g))
		}
		grace = append(grace, []byte(g))
	}

	return &SessionManager{
		signingKey: []byte(secret),
		graceKeys:  grace,
		maxAge:     maxAge,
		issuer:     "aaq",
	}, nil
}

// IssueToken creates a signed JWT with the given claims and the configured
// max age. A refresh is simply re-issuing with the same claims, which
// mutates only exp.
func (sm *SessionManager) IssueToken(claims SessionClaims) (string, error) {
	return sm.issueWithKey(claims, sm.signingKey, sm.maxAge)
}

func (sm *SessionManager) issueWithKey(claims SessionClaims, key []byte, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    sm.issuer,
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies the JWT signature and expiry against the current
// signing key, falling back to each grace key in order, and returns the
// claims on success.
func (sm *SessionManager) ValidateToken(raw string) (*SessionClaims, error) {
	keys := make([][]byte, 0, 1+len(sm.graceKeys))
	keys = append(keys, sm.signingKey)
	keys = append(keys, sm.graceKeys...)

	var lastErr error
	for _, key := range keys {
		claims, err := sm.validateWithKey(raw, key)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("validating token against current and grace secrets: %w", lastErr)
}

func (sm *SessionManager) validateWithKey(raw string, key []byte) (*SessionClaims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom SessionClaims
	if err := tok.Claims(key, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: sm.issuer,
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &custom, nil
}

// IsJWT reports whether raw looks like a JWT (three dot-separated
// segments), per spec §6: "the server distinguishes by key format".
func IsJWT(raw string) bool {
	dots := 0
	for _, r := range raw {
		if r == '.' {
			dots++
		}
	}
	return dots == 2
}
