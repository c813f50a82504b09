package coach

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	SessionSecretMinLength = 16
	sessionTokenIssuer     = "interview-coach"
)

// SessionToken is a signed grant for one websocket interview
type SessionToken struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims are the JWT claims carried by a SessionToken
type SessionClaims struct {
	Language string `json:"lang"`
	Role     string `json:"role"`
	Level    string `json:"level"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) Selection() Selection {
	return Selection{Language: c.Language, Role: c.Role, Level: c.Level}
}

// TokenIssuer signs and verifies session tokens with a shared secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// ValidateSessionSecret checks the secret is long enough to sign with
func ValidateSessionSecret(secret string) Result[string] {
	if len(strings.TrimSpace(secret)) >= SessionSecretMinLength {
		return Ok(secret)
	}
	return Err[string](NewConfigError("session secret must be at least 16 characters"))
}

// NewTokenIssuer builds an issuer. An empty secret gets a random one, which
// means tokens do not survive a restart.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	validated := ValidateSessionSecret(secret)
	if !validated.Success {
		return nil, validated.Error
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TokenIssuer{secret: []byte(validated.Data), ttl: ttl, now: time.Now}, nil
}

func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs a new token for sel with a fresh session ID
func (ti *TokenIssuer) Issue(sel Selection) Result[*SessionToken] {
	now := ti.now()
	expiresAt := now.Add(ti.ttl)
	sessionID := uuid.NewString()

	claims := &SessionClaims{
		Language: sel.Language,
		Role:     sel.Role,
		Level:    sel.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    sessionTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return Err[*SessionToken](WrapError(err, ErrCodeAuthFailed))
	}
	return Ok(&SessionToken{Token: signed, SessionID: sessionID, ExpiresAt: expiresAt})
}

// Verify parses and validates a token string
func (ti *TokenIssuer) Verify(token string) Result[*SessionClaims] {
	if token == "" {
		return Err[*SessionClaims](NewAuthError("missing session token"))
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	})
	if err != nil {
		return Err[*SessionClaims](Wrapf(err, ErrCodeAuthFailed, "invalid session token"))
	}
	if !parsed.Valid || claims.ID == "" || claims.Issuer != sessionTokenIssuer {
		return Err[*SessionClaims](NewAuthError("invalid session token"))
	}
	return Ok(claims)
}

// SessionTokenTTL is the remaining lifetime of a token, never negative
func SessionTokenTTL(token *SessionToken) time.Duration {
	ttl := time.Until(token.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
