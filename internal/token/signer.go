package token

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

// TTLKind selects which configured expiry a token is signed with.
type TTLKind int

const (
	TTLAccess TTLKind = iota
	TTLRefresh
)

// SignerConfig holds externally supplied token issuance settings.
type SignerConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Signer signs and verifies tokens with a session's key pair. It is a pure
// cryptographic component with no side effects.
type Signer struct {
	config SignerConfig
}

// NewSigner constructs a Signer.
func NewSigner(config SignerConfig) *Signer {
	return &Signer{config: config}
}

// AccessTTL exposes the configured access token lifetime.
func (s *Signer) AccessTTL() time.Duration {
	return s.config.AccessTTL
}

// Sign builds a signed token from the payload and the session's private key.
func (s *Signer) Sign(claims models.TokenClaims, key *rsa.PrivateKey, kind TTLKind) (string, error) {
	ttl := s.config.AccessTTL
	if kind == TTLRefresh {
		ttl = s.config.RefreshTTL
	}

	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, &claims).SignedString(key)
}

// IssuePair signs an access/refresh token pair for a session. The access
// token embeds the subject's id and display name; the refresh token embeds
// the subject's id and the session it rotates.
func (s *Signer) IssuePair(userID, name, sessionID string, key *rsa.PrivateKey) (*models.TokenPair, error) {
	access, err := s.Sign(models.TokenClaims{UserID: userID, Name: name}, key, TTLAccess)
	if err != nil {
		return nil, err
	}

	refresh, err := s.Sign(models.TokenClaims{UserID: userID, SessionID: sessionID}, key, TTLRefresh)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify decodes a token against a session's public key. Expiry and signature
// failures are recoverable; callers treat both as unauthenticated.
func (s *Signer) Verify(tokenString string, key *rsa.PublicKey) (*models.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodRS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrExpiredToken.Code, appErrors.ErrExpiredToken.Status, appErrors.ErrExpiredToken.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}

	claims, ok := parsed.Claims.(*models.TokenClaims)
	if !ok || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid token claims")
	}

	return claims, nil
}
