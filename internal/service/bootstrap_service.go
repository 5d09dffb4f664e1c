package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wavechat-auth-api/pkg/jobs"
)

type bootstrapRepository interface {
	CreateFriendList(ctx context.Context, userID string) error
	CreateDefaultConversation(ctx context.Context, userID string) error
}

const (
	taskFriendList   = "friend_list"
	taskConversation = "default_conversation"
)

// BootstrapService creates the default companion records for new accounts on
// a background queue. Dispatch is fire-and-forget: failures are retried a
// bounded number of times, logged, and never fail the signup or login that
// triggered them.
type BootstrapService struct {
	repo   bootstrapRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewBootstrapService constructs the service and its queue. Call Start before
// dispatching and Stop on shutdown.
func NewBootstrapService(repo bootstrapRepository, cfg jobs.QueueConfig, logger *zap.Logger) *BootstrapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BootstrapService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("account_bootstrap", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *BootstrapService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *BootstrapService) Stop() {
	s.queue.Stop()
}

// Bootstrap enqueues the default records for a newly provisioned account.
func (s *BootstrapService) Bootstrap(userID string) {
	for _, taskType := range []string{taskFriendList, taskConversation} {
		task := jobs.Task{ID: uuid.NewString(), Type: taskType, Payload: userID}
		if err := s.queue.Enqueue(task); err != nil {
			s.logger.Warn("failed to enqueue bootstrap task",
				zap.String("type", taskType),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

func (s *BootstrapService) handle(ctx context.Context, task jobs.Task) error {
	userID, ok := task.Payload.(string)
	if !ok {
		s.logger.Error("bootstrap task with invalid payload", zap.String("task_id", task.ID))
		return nil
	}

	switch task.Type {
	case taskFriendList:
		return s.repo.CreateFriendList(ctx, userID)
	case taskConversation:
		return s.repo.CreateDefaultConversation(ctx, userID)
	default:
		return fmt.Errorf("unknown bootstrap task type %s", task.Type)
	}
}
