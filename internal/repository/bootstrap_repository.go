package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BootstrapRepository creates the default records every new account starts
// with: an empty friend list and a default AI conversation.
type BootstrapRepository struct {
	db *sqlx.DB
}

// NewBootstrapRepository creates a new instance of BootstrapRepository.
func NewBootstrapRepository(db *sqlx.DB) *BootstrapRepository {
	return &BootstrapRepository{db: db}
}

// CreateFriendList inserts an empty friend list owned by the user.
func (r *BootstrapRepository) CreateFriendList(ctx context.Context, userID string) error {
	const query = `INSERT INTO friend_lists (id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("create friend list: %w", err)
	}
	return nil
}

// CreateDefaultConversation inserts the user's default AI conversation with
// the user as sole participant and creator.
func (r *BootstrapRepository) CreateDefaultConversation(ctx context.Context, userID string) error {
	conversationID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap conversation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const convQuery = `INSERT INTO conversations (id, creator_id, type, created_at) VALUES ($1, $2, 'ai', $3)`
	if _, err := tx.ExecContext(ctx, convQuery, conversationID, userID, now); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	const partQuery = `INSERT INTO conversation_participants (conversation_id, user_id, joined_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, partQuery, conversationID, userID, now); err != nil {
		return fmt.Errorf("add conversation participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap conversation: %w", err)
	}
	return nil
}
