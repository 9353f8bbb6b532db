package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	KindAdvanceCredit EntryKind = "advance_credit"
	KindExpenseDebit  EntryKind = "expense_debit"
)

// Movement is the before/after view of one balance update.
type Movement struct {
	UserID int64           `json:"user_id"`
	Before decimal.Decimal `json:"balance_before"`
	After  decimal.Decimal `json:"balance_after"`
}

// ReplayEntry is one chronological ledger event with the running balance
// after applying it.
type ReplayEntry struct {
	Kind    EntryKind       `json:"kind"`
	RefID   int64           `json:"ref_id"`
	Amount  decimal.Decimal `json:"amount"`
	Running decimal.Decimal `json:"running_balance"`
	At      time.Time       `json:"at"`
}

// Replay is the full audit reconstruction of a user's balance. Consistent
// reports whether the replayed final balance equals the stored scalar; a
// divergence means the incremental updates and the event history disagree.
type Replay struct {
	UserID       int64           `json:"user_id"`
	Entries      []ReplayEntry   `json:"entries"`
	FinalRunning decimal.Decimal `json:"final_running_balance"`
	StoredScalar decimal.Decimal `json:"stored_balance"`
	Consistent   bool            `json:"consistent"`
}

// Event is a raw credit or debit fact loaded from storage for replay.
type Event struct {
	Kind   EntryKind
	RefID  int64
	Amount decimal.Decimal
	At     time.Time
}

type RepositoryAPI interface {
	// GetBalance returns the stored scalar and its version token.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, int64, error)
	// CompareAndSwapBalance persists newBalance only if the stored version
	// still matches; it reports whether the swap won the race.
	CompareAndSwapBalance(ctx context.Context, userID int64, version int64, newBalance decimal.Decimal) (bool, error)
	// ListEvents returns all completed advances and approved expenses for a
	// user in chronological order.
	ListEvents(ctx context.Context, userID int64) ([]Event, error)
}
