package middleware

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/internal/token"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
	"github.com/noah-isme/wavechat-auth-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing verified token claims.
	ContextUserKey = "currentUser"
	// ContextSessionKey is the gin context key storing the session record.
	ContextSessionKey = "currentSession"

	// HeaderClientID carries the caller's claimed user id.
	HeaderClientID = "X-Client-ID"
	// HeaderSessionID carries the caller's session id.
	HeaderSessionID = "X-Session-ID"
)

type sessionKeyStore interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.SessionKey, error)
}

// Session protects routes by verifying the bearer access token against the
// caller's session public key. There is no server-wide verification secret:
// each session is checked against its own stored key, and a missing record
// means the session is invalid.
func Session(store sessionKeyStore, signer *token.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader(HeaderClientID)
		sessionID := c.GetHeader(HeaderSessionID)
		bearer := bearerToken(c)
		if clientID == "" || sessionID == "" || bearer == "" {
			abortUnauthorized(c)
			return
		}

		record, err := store.FindBySessionID(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				abortUnauthorized(c)
				return
			}
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session key"))
			c.Abort()
			return
		}

		if record.UserID != clientID {
			abortUnauthorized(c)
			return
		}

		pub, err := token.ParsePublicKey(record.PublicKey)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		claims, err := signer.Verify(bearer, pub)
		if err != nil || claims.UserID != clientID {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextSessionKey, record)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func abortUnauthorized(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrAuthFailure, ""))
	c.Abort()
}
