package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/internal/token"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

type authUserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByOAuthAccount(ctx context.Context, provider models.AuthProvider, externalID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionKeyStore interface {
	Create(ctx context.Context, key *models.SessionKey) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.SessionKey, error)
	FindBySessionIDUncached(ctx context.Context, sessionID string) (*models.SessionKey, error)
	Rotate(ctx context.Context, sessionID, priorRefreshToken, publicKey, newRefreshToken string) (*models.SessionKey, error)
	Delete(ctx context.Context, sessionID string) (*models.SessionKey, error)
}

type keyPairGenerator interface {
	Generate() (*token.KeyPair, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, provider models.AuthProvider, externalToken string) (*models.ExternalProfile, error)
}

// accountBootstrapper creates the default records for a new account. Calls
// are fire-and-forget; failures never fail the parent operation.
type accountBootstrapper interface {
	Bootstrap(userID string)
}

// AuthConfig defines configuration for the auth flows.
type AuthConfig struct {
	BcryptCost int
}

// AuthService implements the session protocol: login, OAuth login, refresh
// rotation and logout. Every session is bound to its own key pair; tokens are
// signed with the session's private key and verified against the stored
// public key.
type AuthService struct {
	users     authUserDirectory
	store     sessionKeyStore
	keys      keyPairGenerator
	signer    *token.Signer
	identity  identityResolver
	bootstrap accountBootstrapper
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig

	// compared against on unknown email so that "no such user" and "wrong
	// password" take comparable time
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users authUserDirectory,
	store sessionKeyStore,
	keys keyPairGenerator,
	signer *token.Signer,
	identity identityResolver,
	bootstrap accountBootstrapper,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config AuthConfig,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.BcryptCost <= 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte(ksuid.New().String()), config.BcryptCost)
	if err != nil {
		dummyHash = nil
	}

	return &AuthService{
		users:     users,
		store:     store,
		keys:      keys,
		signer:    signer,
		identity:  identity,
		bootstrap: bootstrap,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		dummyHash: dummyHash,
	}
}

// Login authenticates a user by email and password and opens a new session.
// Unknown email, wrong password and inactive account all surface as the same
// generic failure.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.IncLogin("failure")
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.compareDummy(req.Password)
			s.metrics.IncLogin("failure")
			return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		s.logger.Debug("login rejected for inactive account", zap.String("user_id", user.ID))
		s.metrics.IncLogin("failure")
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.IncLogin("failure")
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	res, err := s.issueSession(ctx, user)
	if err != nil {
		s.metrics.IncLogin("failure")
		return nil, err
	}
	res.RememberMe = req.RememberMe

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent, []byte(`{"status":"success"}`))
	s.metrics.IncLogin("success")

	return res, nil
}

// OAuthLogin exchanges a provider-issued token for a verified profile and
// opens a session, provisioning a local account on first sight. A local
// account under a different provider is a conflict, never a silent takeover.
func (s *AuthService) OAuthLogin(ctx context.Context, provider models.AuthProvider, req models.OAuthLoginRequest) (*models.LoginResponse, error) {
	if provider != models.ProviderGoogle && provider != models.ProviderFacebook {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "unsupported oauth provider")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid oauth payload")
	}

	profile, err := s.identity.Resolve(ctx, provider, req.Token)
	if err != nil {
		s.logger.Warn("oauth token exchange failed", zap.String("provider", string(provider)), zap.Error(err))
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.Provider != provider {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("account already exists with %s provider", user.Provider))
		}
		user, err = s.users.FindByOAuthAccount(ctx, provider, profile.Sub)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("oauth account link missing", zap.String("provider", string(provider)))
				return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch oauth account")
		}
	case errors.Is(err, sql.ErrNoRows):
		user, err = s.provisionOAuthUser(ctx, provider, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	res, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent, []byte(fmt.Sprintf(`{"provider":%q}`, provider)))
	s.metrics.IncLogin("success")

	return res, nil
}

// Refresh rotates a session: a matching refresh token yields a fresh key pair
// and token pair; any other value for this session is treated as reuse of a
// rotated-away token and revokes the session outright.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.RefreshResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	// Authoritative read: the reuse decision below revokes sessions, so it
	// must never be taken from a stale cache entry.
	record, err := s.store.FindBySessionIDUncached(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session key")
	}

	if record.UserID != req.UserID {
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	if subtle.ConstantTimeCompare([]byte(record.CurrentRefreshToken), []byte(req.RefreshToken)) != 1 {
		s.metrics.IncReplayDetected()
		s.logger.Warn("refresh token reuse detected, revoking session",
			zap.String("session_id", req.SessionID),
			zap.String("user_id", record.UserID))
		if _, err := s.store.Delete(context.WithoutCancel(ctx), req.SessionID); err != nil {
			s.logger.Error("failed to revoke session after reuse", zap.String("session_id", req.SessionID), zap.Error(err))
		} else {
			s.metrics.IncSessionRevoked()
		}
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	pair, err := s.keys.Generate()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrKeyGeneration.Code, appErrors.ErrKeyGeneration.Status, "failed to generate session key pair")
	}

	tokens, err := s.signer.IssuePair(record.UserID, "", req.SessionID, pair.Private)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token pair")
	}

	// Detached context: once rotation starts, caller cancellation must not be
	// able to leave the session half-rotated.
	rotated, err := s.store.Rotate(context.WithoutCancel(ctx), req.SessionID, req.RefreshToken, pair.PublicPEM, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if rotated == nil {
		// Lost the race against a concurrent rotate or logout.
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	s.audit(ctx, record.UserID, models.AuditActionRefresh, req.IP, req.UserAgent, []byte(`{"refresh":"rotated"}`))
	s.metrics.IncRotation()

	return &models.RefreshResponse{
		UserID:    record.UserID,
		SessionID: req.SessionID,
		Tokens:    *tokens,
		ExpiresIn: int64(s.signer.AccessTTL().Seconds()),
		IssuedAt:  time.Now().UTC(),
	}, nil
}

// Logout revokes a session. Revocation is absolute: the record is deleted and
// every token bound to it is invalid from here on. Revoking a session that no
// longer exists is reported, not silently ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string, meta models.LoginRequest) error {
	if sessionID == "" {
		return appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	deleted, err := s.store.Delete(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		return err
	}
	if deleted == nil {
		return appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	s.audit(ctx, deleted.UserID, models.AuditActionLogout, meta.IP, meta.UserAgent, []byte(`{"status":"logout"}`))
	s.metrics.IncSessionRevoked()

	return nil
}

// SignUp provisions a local account. It does not open a session; login is a
// separate subsequent call.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SanitizedUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         models.RoleMember,
		Provider:     models.ProviderLocal,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if s.bootstrap != nil {
		s.bootstrap.Bootstrap(user.ID)
	}
	s.audit(ctx, user.ID, models.AuditActionSignUp, req.IP, req.UserAgent, []byte(`{"status":"created"}`))
	s.metrics.IncSignup()

	sanitized := user.Sanitize()
	return &sanitized, nil
}

// issueSession is the shared issuance tail: fresh key pair, signed token
// pair, then the session key record. Creating the record is the last step; if
// it fails the whole login fails, since no token is valid without a stored
// record.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*models.LoginResponse, error) {
	pair, err := s.keys.Generate()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrKeyGeneration.Code, appErrors.ErrKeyGeneration.Status, "failed to generate session key pair")
	}

	sessionID := ksuid.New().String()
	tokens, err := s.signer.IssuePair(user.ID, user.Name, sessionID, pair.Private)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token pair")
	}

	record := &models.SessionKey{
		SessionID:           sessionID,
		UserID:              user.ID,
		PublicKey:           pair.PublicPEM,
		CurrentRefreshToken: tokens.RefreshToken,
	}
	if err := s.store.Create(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("failed to create session key record", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	return &models.LoginResponse{
		User:      user.Sanitize(),
		SessionID: sessionID,
		Tokens:    *tokens,
		ExpiresIn: int64(s.signer.AccessTTL().Seconds()),
		IssuedAt:  time.Now().UTC(),
	}, nil
}

func (s *AuthService) provisionOAuthUser(ctx context.Context, provider models.AuthProvider, profile *models.ExternalProfile) (*models.User, error) {
	sub := profile.Sub
	user := &models.User{
		Email:             profile.Email,
		Name:              profile.Name,
		AvatarURL:         profile.Avatar,
		Role:              models.RoleMember,
		Provider:          provider,
		ProviderAccountID: &sub,
		Active:            true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision oauth user")
	}

	if s.bootstrap != nil {
		s.bootstrap.Bootstrap(user.ID)
	}
	s.metrics.IncSignup()

	return user, nil
}

func (s *AuthService) compareDummy(password string) {
	if s.dummyHash == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *AuthService) audit(ctx context.Context, userID string, action models.AuditAction, ip, userAgent string, detail []byte) {
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		Detail:     detail,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", string(action)), zap.Error(err))
	}
}
