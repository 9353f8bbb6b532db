package audit

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ActionJourneyStarted   = "journey.started"
	ActionJourneyEnded     = "journey.ended"
	ActionJourneyCancelled = "journey.cancelled"
	ActionExpenseCreated   = "expense.created"
	ActionExpenseUpdated   = "expense.updated"
	ActionExpenseDeleted   = "expense.deleted"
	ActionExpenseApproved  = "expense.approved"
	ActionExpenseRejected  = "expense.rejected"
	ActionAdvanceCreated   = "advance.created"
	ActionAdvanceCompleted = "advance.completed"
	ActionAdvanceCancelled = "advance.cancelled"
	ActionAdvanceDeleted   = "advance.deleted"
	ActionMonthLocked      = "month.locked"
	ActionMonthUnlocked    = "month.unlocked"
)

// Entry is an append-only action record. Entries are never mutated and a
// failure to persist one must not abort the operation that produced it.
type Entry struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	EventID    string    `json:"event_id" gorm:"column:event_id;not null"`
	Action     string    `json:"action" gorm:"not null;index"`
	ActorID    int64     `json:"actor_id" gorm:"column:actor_id;not null"`
	TargetType string    `json:"target_type" gorm:"column:target_type;not null"`
	TargetID   int64     `json:"target_id" gorm:"column:target_id;not null"`
	Metadata   string    `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Entry) TableName() string {
	return "audit_entries"
}

func (e *Entry) SetMetadata(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.Metadata = string(raw)
}

// Recorder is the side-effect channel services write audit records through.
type Recorder interface {
	Record(ctx context.Context, action string, actorID int64, targetType string, targetID int64, metadata any)
}

type RepositoryAPI interface {
	Append(ctx context.Context, entry *Entry) error
	ListByTarget(ctx context.Context, targetType string, targetID int64) ([]*Entry, error)
}
