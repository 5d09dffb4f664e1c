package models

import "time"

// AuditAction enumerates recorded auth events.
type AuditAction string

const (
	AuditActionLogin   AuditAction = "LOGIN"
	AuditActionSignUp  AuditAction = "SIGNUP"
	AuditActionRefresh AuditAction = "REFRESH"
	AuditActionLogout  AuditAction = "LOGOUT"
)

// AuditLog records an auth event. Writes are best-effort.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte      `db:"detail" json:"detail,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address"`
	UserAgent  string      `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
