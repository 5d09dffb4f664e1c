package models

import "time"

// SessionKey binds one live session to its current verification key and the
// single refresh token value that is valid for it. The matching private key is
// never persisted; it exists only in memory while tokens are being issued.
type SessionKey struct {
	SessionID           string    `db:"session_id" json:"session_id"`
	UserID              string    `db:"user_id" json:"user_id"`
	PublicKey           string    `db:"public_key" json:"-"`
	CurrentRefreshToken string    `db:"current_refresh_token" json:"-"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	RotatedAt           time.Time `db:"rotated_at" json:"rotated_at"`
}
