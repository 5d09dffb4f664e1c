package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// SignUpRequest holds the fields for provisioning a local account.
type SignUpRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// OAuthLoginRequest carries the provider-issued token to exchange.
type OAuthLoginRequest struct {
	Token     string `json:"token" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RefreshRequest presents a refresh token for rotation. All three fields are
// required: the token, the session it claims to rotate, and the user claiming
// it.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	SessionID    string `json:"-" validate:"required"`
	UserID       string `json:"-" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// TokenPair is the signed access/refresh token pair issued for a session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse returns the issued tokens and sanitized user.
type LoginResponse struct {
	User       SanitizedUser `json:"user"`
	SessionID  string        `json:"session_id"`
	Tokens     TokenPair     `json:"tokens"`
	ExpiresIn  int64         `json:"expires_in"`
	IssuedAt   time.Time     `json:"issued_at"`
	RememberMe bool          `json:"remember_me,omitempty"`
}

// RefreshResponse returns the rotated tokens and the subject identity.
type RefreshResponse struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Tokens    TokenPair `json:"tokens"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
}

// TokenClaims is the JWT payload signed with a session's private key. Access
// tokens carry the user id and display name; refresh tokens carry the user id
// and the session id they rotate.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}
