package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/pkg/config"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

func newIdentityService(googleURL, facebookURL string) *IdentityProviderService {
	return NewIdentityProviderService(config.OAuthConfig{
		GoogleTokenInfoURL: googleURL,
		FacebookGraphURL:   facebookURL,
		RequestTimeout:     time.Second,
	}, nil)
}

func TestResolveGoogleProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-token-1", r.URL.Query().Get("id_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"google-sub-1","email":"bob@example.com","name":"Bob","picture":"https://cdn/avatar.png"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	svc := newIdentityService(srv.URL, "")
	profile, err := svc.Resolve(context.Background(), models.ProviderGoogle, "id-token-1")
	require.NoError(t, err)
	assert.Equal(t, "google-sub-1", profile.Sub)
	assert.Equal(t, "bob@example.com", profile.Email)
	assert.Equal(t, "Bob", profile.Name)
	assert.Equal(t, "https://cdn/avatar.png", profile.Avatar)
}

func TestResolveGoogleRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := newIdentityService(srv.URL, "")
	_, err := svc.Resolve(context.Background(), models.ProviderGoogle, "forged")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExternalAuth.Code, appErrors.FromError(err).Code)
}

func TestResolveGoogleIncompleteProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"No Subject"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	svc := newIdentityService(srv.URL, "")
	_, err := svc.Resolve(context.Background(), models.ProviderGoogle, "odd-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExternalAuth.Code, appErrors.FromError(err).Code)
}

func TestResolveFacebookProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "fb-token-1", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"fb-1","name":"Dana","email":"dana@example.com","picture":{"data":{"url":"https://cdn/dana.png"}}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	svc := newIdentityService("", srv.URL)
	profile, err := svc.Resolve(context.Background(), models.ProviderFacebook, "fb-token-1")
	require.NoError(t, err)
	assert.Equal(t, "fb-1", profile.Sub)
	assert.Equal(t, "dana@example.com", profile.Email)
	assert.Equal(t, "https://cdn/dana.png", profile.Avatar)
}

func TestResolveUnsupportedProvider(t *testing.T) {
	svc := newIdentityService("", "")
	_, err := svc.Resolve(context.Background(), models.AuthProvider("github"), "whatever")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadRequest.Code, appErrors.FromError(err).Code)
}

func TestResolveProviderUnreachable(t *testing.T) {
	svc := newIdentityService("http://127.0.0.1:1", "")
	_, err := svc.Resolve(context.Background(), models.ProviderGoogle, "token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExternalAuth.Code, appErrors.FromError(err).Code)
}
