package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/internal/token"
)

type stubSessionStore struct {
	records map[string]*models.SessionKey
	err     error
}

func (s *stubSessionStore) FindBySessionID(_ context.Context, sessionID string) (*models.SessionKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

type sessionFixture struct {
	store       *stubSessionStore
	signer      *token.Signer
	accessToken string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pair, err := token.NewKeyPairGenerator(1024).Generate()
	require.NoError(t, err)

	signer := token.NewSigner(token.SignerConfig{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "wavechat-auth-test",
	})
	tokens, err := signer.IssuePair("u1", "Alice", "s1", pair.Private)
	require.NoError(t, err)

	store := &stubSessionStore{records: map[string]*models.SessionKey{
		"s1": {SessionID: "s1", UserID: "u1", PublicKey: pair.PublicPEM, CurrentRefreshToken: tokens.RefreshToken},
	}}
	return &sessionFixture{store: store, signer: signer, accessToken: tokens.AccessToken}
}

type capturedValues struct {
	claims *models.TokenClaims
	record *models.SessionKey
}

func (f *sessionFixture) perform(sessionID, clientID, bearer string) (*httptest.ResponseRecorder, *capturedValues) {
	w := httptest.NewRecorder()
	var captured *capturedValues

	r := gin.New()
	r.GET("/protected", Session(f.store, f.signer), func(c *gin.Context) {
		captured = &capturedValues{}
		if value, exists := c.Get(ContextUserKey); exists {
			captured.claims, _ = value.(*models.TokenClaims)
		}
		if value, exists := c.Get(ContextSessionKey); exists {
			captured.record, _ = value.(*models.SessionKey)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	if clientID != "" {
		req.Header.Set(HeaderClientID, clientID)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	r.ServeHTTP(w, req)
	return w, captured
}

func TestSessionMiddlewareAcceptsValidToken(t *testing.T) {
	f := newSessionFixture(t)

	w, captured := f.perform("s1", "u1", f.accessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)

	require.NotNil(t, captured.claims)
	assert.Equal(t, "u1", captured.claims.UserID)
	require.NotNil(t, captured.record)
	assert.Equal(t, "s1", captured.record.SessionID)
}

func TestSessionMiddlewareMissingHeaders(t *testing.T) {
	f := newSessionFixture(t)

	cases := []struct {
		name      string
		sessionID string
		clientID  string
		bearer    string
	}{
		{"no session id", "", "u1", f.accessToken},
		{"no client id", "s1", "", f.accessToken},
		{"no bearer", "s1", "u1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := f.perform(tc.sessionID, tc.clientID, tc.bearer)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestSessionMiddlewareUnknownSession(t *testing.T) {
	f := newSessionFixture(t)

	w, _ := f.perform("revoked", "u1", f.accessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddlewareClientMismatch(t *testing.T) {
	f := newSessionFixture(t)

	w, _ := f.perform("s1", "someone-else", f.accessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddlewareForeignKeyToken(t *testing.T) {
	f := newSessionFixture(t)

	// Token signed under a different session's key pair must not verify.
	otherPair, err := token.NewKeyPairGenerator(1024).Generate()
	require.NoError(t, err)
	foreign, err := f.signer.IssuePair("u1", "Alice", "s1", otherPair.Private)
	require.NoError(t, err)

	w, _ := f.perform("s1", "u1", foreign.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddlewareStoreFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.store.err = context.DeadlineExceeded

	w, _ := f.perform("s1", "u1", f.accessToken)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
