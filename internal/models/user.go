package models

import "time"

// AuthProvider identifies how an account was provisioned.
type AuthProvider string

const (
	ProviderLocal    AuthProvider = "local"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
)

// UserRole represents the application roles.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMember UserRole = "MEMBER"
)

// User represents an application user stored in the users table.
type User struct {
	ID                string       `db:"id" json:"id"`
	Email             string       `db:"email" json:"email"`
	PasswordHash      string       `db:"password_hash" json:"-"`
	Name              string       `db:"name" json:"name"`
	AvatarURL         string       `db:"avatar_url" json:"avatar_url"`
	Role              UserRole     `db:"role" json:"role"`
	Provider          AuthProvider `db:"provider" json:"-"`
	ProviderAccountID *string      `db:"provider_account_id" json:"-"`
	Active            bool         `db:"active" json:"active"`
	LastLogin         *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// SanitizedUser is the user view returned to clients. Password hash and
// provider linkage never leave the service.
type SanitizedUser struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Role      UserRole `json:"role"`
	Active    bool     `json:"active"`
}

// Sanitize strips sensitive fields for responses.
func (u *User) Sanitize() SanitizedUser {
	return SanitizedUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Active:    u.Active,
	}
}

// ExternalProfile is the verified identity returned by an OAuth provider.
type ExternalProfile struct {
	Sub    string `json:"sub"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
