package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestClaims_DecodesEmailAndExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Session{Token: signedToken(t, jwt.MapClaims{
		"sub":   "42",
		"email": "ada@example.com",
		"exp":   exp.Unix(),
	})}

	c, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "ada@example.com", c.Label())
	assert.True(t, c.ExpiresAt.Equal(exp))
	assert.False(t, c.Expired(exp.Add(-time.Minute)))
	assert.True(t, c.Expired(exp.Add(time.Minute)))
}

func TestClaims_ASPNetClaimNames(t *testing.T) {
	s := Session{Token: signedToken(t, jwt.MapClaims{
		claimXMLName: "Ada Lovelace",
	})}

	c, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", c.Label())
	assert.False(t, c.Expired(time.Now()))
}

func TestClaims_OpaqueToken(t *testing.T) {
	c, ok := Session{Token: "not-a-jwt"}.Claims()
	assert.False(t, ok)
	assert.Equal(t, "signed in", c.Label())

	_, ok = Session{}.Claims()
	assert.False(t, ok)
}
