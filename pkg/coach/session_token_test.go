package coach

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-session"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	sel := Selection{Language: "es", Role: "backend", Level: "senior"}
	issued := issuer.Issue(sel)
	require.True(t, issued.Success)
	assert.NotEmpty(t, issued.Data.SessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.Data.ExpiresAt, 5*time.Second)

	verified := issuer.Verify(issued.Data.Token)
	require.True(t, verified.Success, "verify: %v", verified.Error)
	assert.Equal(t, sel, verified.Data.Selection())
	assert.Equal(t, issued.Data.SessionID, verified.Data.ID)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("another-secret-of-enough-length", time.Hour)
	require.NoError(t, err)

	expired, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: sessionTokenIssuer},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", other.Issue(Selection{Language: "en"}).Data.Token},
		{"expired", expired.Issue(Selection{Language: "en"}).Data.Token},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := issuer.Verify(tt.token)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, ErrCodeAuthFailed, res.Error.Code)
		})
	}
}

func TestNewTokenIssuer_Secret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))

	random, err := NewTokenIssuer("", 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, random.TTL())
	assert.True(t, random.Verify(random.Issue(Selection{Language: "en"}).Data.Token).Success)
}

func TestSessionTokenTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), SessionTokenTTL(&SessionToken{ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Greater(t, SessionTokenTTL(&SessionToken{ExpiresAt: time.Now().Add(time.Minute)}), 50*time.Second)
}
