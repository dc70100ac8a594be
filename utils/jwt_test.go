package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	tok, err := issuer.GenerateToken(42)
	require.NoError(t, err)

	uid, err := issuer.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
}

func TestVerifyToken_Rejects(t *testing.T) {
	tok, err := NewTokenIssuer("other", time.Hour).GenerateToken(1)
	require.NoError(t, err)
	_, err = NewTokenIssuer("secret", time.Hour).VerifyToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewTokenIssuer("secret", -time.Minute).GenerateToken(1)
	require.NoError(t, err)
	_, err = NewTokenIssuer("secret", time.Hour).VerifyToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenIssuer("secret", time.Hour).VerifyToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
