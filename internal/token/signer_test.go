package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

const testKeyBits = 1024

func newTestSigner() *Signer {
	return NewSigner(SignerConfig{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "wavechat-auth-test",
	})
}

func TestKeyPairGeneratorUniqueMaterial(t *testing.T) {
	gen := NewKeyPairGenerator(testKeyBits)

	first, err := gen.Generate()
	require.NoError(t, err)
	second, err := gen.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, first.PublicPEM, second.PublicPEM)
	assert.NotEqual(t, first.Private.D, second.Private.D)
}

func TestParsePublicKeyRoundTrip(t *testing.T) {
	gen := NewKeyPairGenerator(testKeyBits)
	pair, err := gen.Generate()
	require.NoError(t, err)

	pub, err := ParsePublicKey(pair.PublicPEM)
	require.NoError(t, err)
	assert.Equal(t, pair.Private.PublicKey.N, pub.N)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey("not a pem block")
	require.Error(t, err)
}

func TestSignAndVerifyPair(t *testing.T) {
	gen := NewKeyPairGenerator(testKeyBits)
	pair, err := gen.Generate()
	require.NoError(t, err)

	signer := newTestSigner()
	tokens, err := signer.IssuePair("u1", "Alice", "s1", pair.Private)
	require.NoError(t, err)

	pub, err := ParsePublicKey(pair.PublicPEM)
	require.NoError(t, err)

	access, err := signer.Verify(tokens.AccessToken, pub)
	require.NoError(t, err)
	assert.Equal(t, "u1", access.UserID)
	assert.Equal(t, "Alice", access.Name)
	assert.Empty(t, access.SessionID)

	refresh, err := signer.Verify(tokens.RefreshToken, pub)
	require.NoError(t, err)
	assert.Equal(t, "u1", refresh.UserID)
	assert.Equal(t, "s1", refresh.SessionID)
	assert.Empty(t, refresh.Name)

	// Refresh tokens outlive access tokens.
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time))
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	gen := NewKeyPairGenerator(testKeyBits)
	pair, err := gen.Generate()
	require.NoError(t, err)
	other, err := gen.Generate()
	require.NoError(t, err)

	signer := newTestSigner()
	signed, err := signer.Sign(models.TokenClaims{UserID: "u1"}, pair.Private, TTLAccess)
	require.NoError(t, err)

	otherPub, err := ParsePublicKey(other.PublicPEM)
	require.NoError(t, err)

	_, err = signer.Verify(signed, otherPub)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	gen := NewKeyPairGenerator(testKeyBits)
	pair, err := gen.Generate()
	require.NoError(t, err)

	expired := NewSigner(SignerConfig{AccessTTL: -time.Minute, RefreshTTL: time.Hour, Issuer: "wavechat-auth-test"})
	signed, err := expired.Sign(models.TokenClaims{UserID: "u1"}, pair.Private, TTLAccess)
	require.NoError(t, err)

	pub, err := ParsePublicKey(pair.PublicPEM)
	require.NoError(t, err)

	_, err = expired.Verify(signed, pub)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExpiredToken.Code, appErrors.FromError(err).Code)
}
