// ABOUTME: Tests for JWT generation and verification
// ABOUTME: Covers expiry, wrong secrets, wrong algorithms, and missing claims

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("alice", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := NewJWTVerifier([]byte("secret-one"))
	verifier := NewJWTVerifier([]byte("secret-two"))

	token, err := signer.Generate("alice", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)

	// A token signed with the right secret but no sub claim.
	now := time.Now()
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerifyRejectsUnsignedAlgorithm(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	raw := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
