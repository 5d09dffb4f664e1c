package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/pkg/config"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

// IdentityProviderService exchanges provider-issued tokens for verified
// external profiles. Google tokens are verified against the tokeninfo
// endpoint, Facebook tokens against the Graph API.
type IdentityProviderService struct {
	client *http.Client
	config config.OAuthConfig
	logger *zap.Logger
}

// NewIdentityProviderService constructs the exchange client.
func NewIdentityProviderService(cfg config.OAuthConfig, logger *zap.Logger) *IdentityProviderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityProviderService{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		config: cfg,
		logger: logger,
	}
}

// Resolve verifies an external token and returns the profile it attests to.
func (s *IdentityProviderService) Resolve(ctx context.Context, provider models.AuthProvider, externalToken string) (*models.ExternalProfile, error) {
	switch provider {
	case models.ProviderGoogle:
		return s.resolveGoogle(ctx, externalToken)
	case models.ProviderFacebook:
		return s.resolveFacebook(ctx, externalToken)
	default:
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "unsupported oauth provider")
	}
}

func (s *IdentityProviderService) resolveGoogle(ctx context.Context, idToken string) (*models.ExternalProfile, error) {
	endpoint := fmt.Sprintf("%s?id_token=%s", s.config.GoogleTokenInfoURL, url.QueryEscape(idToken))

	var payload struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := s.fetchJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Sub == "" || payload.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrExternalAuth, "")
	}

	return &models.ExternalProfile{
		Sub:    payload.Sub,
		Email:  payload.Email,
		Name:   payload.Name,
		Avatar: payload.Picture,
	}, nil
}

func (s *IdentityProviderService) resolveFacebook(ctx context.Context, accessToken string) (*models.ExternalProfile, error) {
	endpoint := fmt.Sprintf("%s/me?fields=id,name,email,picture&access_token=%s", s.config.FacebookGraphURL, url.QueryEscape(accessToken))

	var payload struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := s.fetchJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" || payload.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrExternalAuth, "")
	}

	return &models.ExternalProfile{
		Sub:    payload.ID,
		Email:  payload.Email,
		Name:   payload.Name,
		Avatar: payload.Picture.Data.URL,
	}, nil
}

func (s *IdentityProviderService) fetchJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrExternalAuth.Code, appErrors.ErrExternalAuth.Status, appErrors.ErrExternalAuth.Message)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrExternalAuth.Code, appErrors.ErrExternalAuth.Status, appErrors.ErrExternalAuth.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("identity provider rejected token", zap.Int("status", resp.StatusCode))
		return appErrors.Clone(appErrors.ErrExternalAuth, "")
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrExternalAuth.Code, appErrors.ErrExternalAuth.Status, appErrors.ErrExternalAuth.Message)
	}

	return nil
}
