package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink appends audit entries fire-and-forget. The write runs detached from
// the request with its own deadline so a slow or failing audit store cannot
// break the main flow; failures are logged and swallowed.
type Sink struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewSink(repo RepositoryAPI, logger *slog.Logger) *Sink {
	return &Sink{repo: repo, logger: logger}
}

func (s *Sink) Record(ctx context.Context, action string, actorID int64, targetType string, targetID int64, metadata any) {
	entry := &Entry{
		EventID:    uuid.NewString(),
		Action:     action,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if metadata != nil {
		entry.SetMetadata(metadata)
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.Append(writeCtx, entry); err != nil {
			s.logger.Error("audit append failed",
				"error", err,
				"action", action,
				"target_type", targetType,
				"target_id", targetID)
		}
	}()
}
