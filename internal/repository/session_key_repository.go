package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wavechat-auth-api/internal/models"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
)

// SessionKeyRepository persists one row per live session binding the user to
// the session's current public key and currently valid refresh token.
//
// Rotate and Delete are single conditional statements, so a rotate racing a
// concurrent delete (or another rotate with the same prior token) can never
// both succeed against the same prior state.
//
// Lookups may be served from a short-TTL Redis cache; entries are dropped
// before and after every mutation so a reader never observes a rotated-away
// key for longer than the cache TTL. The database row is the source of truth.
type SessionKeyRepository struct {
	db       *sqlx.DB
	cache    sessionCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

type sessionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// sessionKeyCacheEntry is the cache encoding of a session key record. The
// record's own json tags hide key material from API responses, so the cache
// carries its own full encoding.
type sessionKeyCacheEntry struct {
	SessionID           string    `json:"session_id"`
	UserID              string    `json:"user_id"`
	PublicKey           string    `json:"public_key"`
	CurrentRefreshToken string    `json:"current_refresh_token"`
	CreatedAt           time.Time `json:"created_at"`
	RotatedAt           time.Time `json:"rotated_at"`
}

func newSessionKeyCacheEntry(key *models.SessionKey) *sessionKeyCacheEntry {
	return &sessionKeyCacheEntry{
		SessionID:           key.SessionID,
		UserID:              key.UserID,
		PublicKey:           key.PublicKey,
		CurrentRefreshToken: key.CurrentRefreshToken,
		CreatedAt:           key.CreatedAt,
		RotatedAt:           key.RotatedAt,
	}
}

func (e *sessionKeyCacheEntry) record() *models.SessionKey {
	return &models.SessionKey{
		SessionID:           e.SessionID,
		UserID:              e.UserID,
		PublicKey:           e.PublicKey,
		CurrentRefreshToken: e.CurrentRefreshToken,
		CreatedAt:           e.CreatedAt,
		RotatedAt:           e.RotatedAt,
	}
}

// NewSessionKeyRepository creates the session key store. cache may be nil.
func NewSessionKeyRepository(db *sqlx.DB, cache sessionCache, cacheTTL time.Duration, logger *zap.Logger) *SessionKeyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionKeyRepository{db: db, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

const sessionKeyColumns = `session_id, user_id, public_key, current_refresh_token, created_at, rotated_at`

// Create inserts a new session key record and assigns its session id.
func (r *SessionKeyRepository) Create(ctx context.Context, key *models.SessionKey) error {
	if key.SessionID == "" {
		key.SessionID = ksuid.New().String()
	}
	now := time.Now().UTC()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	key.RotatedAt = key.CreatedAt

	const query = `INSERT INTO session_keys (session_id, user_id, public_key, current_refresh_token, created_at, rotated_at) VALUES (:session_id, :user_id, :public_key, :current_refresh_token, :created_at, :rotated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "create session key")
	}
	return nil
}

// FindBySessionID returns the session key record, or sql.ErrNoRows when the
// session does not exist (equivalent to "session invalid"). It serves the
// verification hot path and may answer from the cache.
func (r *SessionKeyRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.SessionKey, error) {
	if r.cache != nil {
		var cached sessionKeyCacheEntry
		if err := r.cache.Get(ctx, sessionCacheKey(sessionID), &cached); err == nil {
			return cached.record(), nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			r.logger.Warn("session key cache read failed", zap.Error(err))
		}
	}

	key, err := r.findStored(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, sessionCacheKey(sessionID), newSessionKeyCacheEntry(key), r.cacheTTL); err != nil {
			r.logger.Warn("session key cache write failed", zap.Error(err))
		}
	}

	return key, nil
}

// FindBySessionIDUncached reads the session key row straight from the
// database. Callers deciding whether to revoke a session must use this: a
// destructive decision has to be taken from the authoritative record, never
// from a possibly stale cache entry.
func (r *SessionKeyRepository) FindBySessionIDUncached(ctx context.Context, sessionID string) (*models.SessionKey, error) {
	return r.findStored(ctx, sessionID)
}

func (r *SessionKeyRepository) findStored(ctx context.Context, sessionID string) (*models.SessionKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_keys WHERE session_id = $1 LIMIT 1`, sessionKeyColumns)
	var key models.SessionKey
	if err := r.db.GetContext(ctx, &key, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session key: %w", err)
	}
	return &key, nil
}

// Rotate atomically replaces the public key and refresh token of a session,
// conditioned on the record still holding priorRefreshToken. It returns nil
// when no record matched: the session is gone or another caller rotated it
// first. The two columns always change together; a partial rotation is not
// expressible.
func (r *SessionKeyRepository) Rotate(ctx context.Context, sessionID, priorRefreshToken, publicKey, newRefreshToken string) (*models.SessionKey, error) {
	r.dropCached(ctx, sessionID)

	query := fmt.Sprintf(`UPDATE session_keys SET public_key = $3, current_refresh_token = $4, rotated_at = $5 WHERE session_id = $1 AND current_refresh_token = $2 RETURNING %s`, sessionKeyColumns)
	var key models.SessionKey
	err := r.db.GetContext(ctx, &key, query, sessionID, priorRefreshToken, publicKey, newRefreshToken, time.Now().UTC())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "rotate session key")
	}

	r.dropCached(ctx, sessionID)
	return &key, nil
}

// Delete removes the session key record, returning the deleted record or nil
// when nothing existed to revoke.
func (r *SessionKeyRepository) Delete(ctx context.Context, sessionID string) (*models.SessionKey, error) {
	r.dropCached(ctx, sessionID)

	query := fmt.Sprintf(`DELETE FROM session_keys WHERE session_id = $1 RETURNING %s`, sessionKeyColumns)
	var key models.SessionKey
	err := r.db.GetContext(ctx, &key, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "delete session key")
	}

	r.dropCached(ctx, sessionID)
	return &key, nil
}

func (r *SessionKeyRepository) dropCached(ctx context.Context, sessionID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, sessionCacheKey(sessionID)); err != nil {
		r.logger.Warn("session key cache invalidation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func sessionCacheKey(sessionID string) string {
	return "session_key:" + sessionID
}
