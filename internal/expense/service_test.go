package expense_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/expense"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"github.com/waypoint-hq/field-expense/internal/user"
)

func TestExpense(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Expense Suite")
}

// Mock repository for testing
type mockExpenseRepository struct {
	expenses    map[int64]*expense.Expense
	nextID      int64
	createError error
	getError    error
}

func newMockExpenseRepository() *mockExpenseRepository {
	return &mockExpenseRepository{expenses: make(map[int64]*expense.Expense), nextID: 1}
}

func (m *mockExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	if m.createError != nil {
		return m.createError
	}
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	cp := *e
	m.expenses[e.ID] = &cp
	return nil
}

func (m *mockExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	e, ok := m.expenses[id]
	if !ok {
		return nil, internal.ErrExpenseNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockExpenseRepository) Update(ctx context.Context, e *expense.Expense) error {
	cp := *e
	m.expenses[e.ID] = &cp
	return nil
}

func (m *mockExpenseRepository) Delete(ctx context.Context, id int64) error {
	delete(m.expenses, id)
	return nil
}

func (m *mockExpenseRepository) UpdateApproval(ctx context.Context, e *expense.Expense) (bool, error) {
	stored, ok := m.expenses[e.ID]
	if !ok {
		return false, internal.ErrExpenseNotFound
	}
	if !stored.IsPending() {
		return false, nil
	}
	cp := *e
	m.expenses[e.ID] = &cp
	return true, nil
}

func (m *mockExpenseRepository) List(ctx context.Context, scope user.Scope, filter expense.ListFilter) ([]*expense.Expense, error) {
	out := make([]*expense.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// Mock journey store for testing
type mockJourneyStore struct {
	owned       map[int64]int64 // journeyID -> userID
	totals      map[int64]decimal.Decimal
	addTotalErr error
}

func newMockJourneyStore() *mockJourneyStore {
	return &mockJourneyStore{owned: make(map[int64]int64), totals: make(map[int64]decimal.Decimal)}
}

func (m *mockJourneyStore) BelongsTo(ctx context.Context, journeyID, userID int64) (bool, error) {
	owner, ok := m.owned[journeyID]
	return ok && owner == userID, nil
}

func (m *mockJourneyStore) AddExpensesTotal(ctx context.Context, journeyID int64, amount decimal.Decimal) error {
	if m.addTotalErr != nil {
		return m.addTotalErr
	}
	m.totals[journeyID] = m.totals[journeyID].Add(amount)
	return nil
}

// Mock ledger for testing
type mockLedger struct {
	balance  decimal.Decimal
	debitErr error
	debits   []decimal.Decimal
}

func (m *mockLedger) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error) {
	if m.debitErr != nil {
		return nil, m.debitErr
	}
	before := m.balance
	m.balance = m.balance.Sub(amount)
	m.debits = append(m.debits, amount)
	return &ledger.Movement{UserID: userID, Before: before, After: m.balance}, nil
}

// Mock lock gate for testing
type mockLockGate struct {
	lockedMonths map[string]bool
}

func newMockLockGate() *mockLockGate {
	return &mockLockGate{lockedMonths: make(map[string]bool)}
}

func (m *mockLockGate) lock(year, month int) {
	m.lockedMonths[time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")] = true
}

func (m *mockLockGate) AssertUnlocked(ctx context.Context, userID int64, date time.Time) error {
	if m.lockedMonths[date.Format("2006-01")] {
		return internal.ErrPeriodLocked
	}
	return nil
}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, action string, actorID int64, targetType string, targetID int64, metadata any) {
}

func f64(v float64) *float64 { return &v }

var _ = Describe("ExpenseService", func() {
	var (
		service  *expense.Service
		repo     *mockExpenseRepository
		journeys *mockJourneyStore
		books    *mockLedger
		locks    *mockLockGate
		employee *user.User
		admin    *user.User
	)

	ctx := context.Background()
	november := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		repo = newMockExpenseRepository()
		journeys = newMockJourneyStore()
		books = &mockLedger{balance: decimal.NewFromInt(5000)}
		locks = newMockLockGate()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = expense.NewService(repo, journeys, books, locks, &internal.RatesConfig{}, noopRecorder{}, logger)

		employee = &user.User{ID: 7, Role: user.RoleEmployee}
		admin = &user.User{ID: 1, Role: user.RoleAdmin}
	})

	// seedPending stores a pending travel expense priced like one spawned
	// from a journey: amount already equals distance x rate.
	seedPending := func(systemKm, manualKm, rate, amount float64) *expense.Expense {
		jid := int64(55)
		journeys.owned[jid] = employee.ID
		exp := &expense.Expense{
			UserID:           employee.ID,
			JourneyID:        &jid,
			Category:         expense.CategoryJourney,
			ExpenseType:      expense.TypeTravel,
			ExpenseDate:      november,
			Amount:           decimal.NewFromFloat(amount),
			SystemDistanceKm: decimal.NewFromFloat(systemKm),
			ManualDistanceKm: decimal.NewFromFloat(manualKm),
			DistanceRate:     decimal.NewFromFloat(rate),
			Status:           expense.StatusPending,
		}
		Expect(repo.Create(ctx, exp)).To(Succeed())
		return exp
	}

	Describe("CreateExpense", func() {
		It("creates a pending general expense", func() {
			dto := &expense.CreateExpenseDTO{
				ExpenseType: expense.TypeFood,
				ExpenseDate: november,
				Description: "site lunch",
				Amount:      f64(240),
			}

			exp, err := service.CreateExpense(ctx, employee, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(exp.Status).To(Equal(expense.StatusPending))
			Expect(exp.Category).To(Equal(expense.CategoryGeneral))
			Expect(exp.Amount.String()).To(Equal("240"))
		})

		It("defaults machine visit expenses to the configured tariff", func() {
			dto := &expense.CreateExpenseDTO{
				ExpenseType: expense.TypeMachineVisit,
				ExpenseDate: november,
			}

			exp, err := service.CreateExpense(ctx, employee, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(exp.Amount.String()).To(Equal("150"))
		})

		It("requires a journey_id for journey expenses", func() {
			dto := &expense.CreateExpenseDTO{
				Category:    expense.CategoryJourney,
				ExpenseType: expense.TypeFuel,
				ExpenseDate: november,
				Amount:      f64(500),
			}

			_, err := service.CreateExpense(ctx, employee, dto)

			_, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
		})

		It("rejects journey expenses against someone else's journey", func() {
			journeys.owned[99] = 42 // different owner
			jid := int64(99)
			dto := &expense.CreateExpenseDTO{
				Category:    expense.CategoryJourney,
				ExpenseType: expense.TypeFuel,
				ExpenseDate: november,
				Amount:      f64(500),
				JourneyID:   &jid,
			}

			_, err := service.CreateExpense(ctx, employee, dto)

			Expect(errors.Is(err, internal.ErrJourneyNotFound)).To(BeTrue())
		})

		It("refuses expenses dated inside a locked month", func() {
			locks.lock(2025, 11)
			dto := &expense.CreateExpenseDTO{
				ExpenseType: expense.TypeFood,
				ExpenseDate: november,
				Amount:      f64(100),
			}

			_, err := service.CreateExpense(ctx, employee, dto)

			Expect(errors.Is(err, internal.ErrPeriodLocked)).To(BeTrue())
		})
	})

	Describe("Approve", func() {
		It("prices option 1 with the system distance on top of the stored amount", func() {
			// travel expense: amount 124, system 15.5 km at rate 8
			exp := seedPending(15.5, 18, 8, 124)

			result, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.ApprovedAmount).To(Equal(248.00))
			Expect(result.BalanceBefore).To(Equal(5000.00))
			Expect(result.BalanceAfter).To(Equal(4752.00))
			Expect(result.Expense.Status).To(Equal(expense.StatusApproved))
			Expect(*result.Expense.ApprovedOption).To(Equal(1))
			Expect(result.Expense.ProcessedAt).ToNot(BeNil())
		})

		It("prices option 2 with the manual distance", func() {
			exp := seedPending(15.5, 18, 8, 124)

			result, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionManualDistance})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.ApprovedAmount).To(Equal(268.00))
		})

		It("prices option 3 with the admin override distance", func() {
			exp := seedPending(15.5, 18, 8, 124)

			result, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{
				Option:          expense.OptionAdminDistance,
				AdminDistanceKm: f64(16),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.ApprovedAmount).To(Equal(252.00))
			Expect(result.Expense.AdminDistanceKm.String()).To(Equal("16"))
		})

		It("rejects option 3 without an admin distance anywhere", func() {
			exp := seedPending(15.5, 18, 8, 124)

			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionAdminDistance})

			Expect(errors.Is(err, internal.ErrMissingAdminDistance)).To(BeTrue())
		})

		It("counts the journey distance twice: once in the seeded amount, once as the distance cost", func() {
			// journey of 120.15 km at rate 8 seeds amount 961.20
			exp := seedPending(120.15, 120.15, 8, 961.20)

			result, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.ApprovedAmount).To(Equal(1922.40))
		})

		It("adds the approved amount to the journey total and debits the employee", func() {
			exp := seedPending(15.5, 18, 8, 124)

			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})

			Expect(err).ToNot(HaveOccurred())
			Expect(journeys.totals[55].String()).To(Equal("248"))
			Expect(books.debits).To(HaveLen(1))
			Expect(books.debits[0].String()).To(Equal("248"))
		})

		It("refuses a second approval and leaves the first result intact", func() {
			exp := seedPending(15.5, 18, 8, 124)

			first, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionManualDistance})
			Expect(errors.Is(err, internal.ErrAlreadyProcessed)).To(BeTrue())

			stored, err := repo.GetByID(ctx, exp.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.ApprovedAmount.InexactFloat64()).To(Equal(first.ApprovedAmount))
			Expect(books.debits).To(HaveLen(1))
		})

		It("refuses approval inside a locked month", func() {
			exp := seedPending(15.5, 18, 8, 124)
			locks.lock(2025, 11)

			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})

			Expect(errors.Is(err, internal.ErrPeriodLocked)).To(BeTrue())
		})

		It("refuses approval when no distance rate is stored", func() {
			exp := seedPending(15.5, 18, 0, 124)

			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})

			Expect(errors.Is(err, internal.ErrMissingRate)).To(BeTrue())
		})

		It("rejects unknown options", func() {
			exp := seedPending(15.5, 18, 8, 124)

			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: 4})

			_, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Reject", func() {
		It("moves the expense to rejected without touching the balance or journey", func() {
			exp := seedPending(15.5, 18, 8, 124)

			rejected, err := service.Reject(ctx, admin, exp.ID, &expense.RejectDTO{Reason: "distance looks inflated"})

			Expect(err).ToNot(HaveOccurred())
			Expect(rejected.Status).To(Equal(expense.StatusRejected))
			Expect(rejected.RejectionReason).To(Equal("distance looks inflated"))
			Expect(books.debits).To(BeEmpty())
			Expect(journeys.totals).To(BeEmpty())
		})

		It("requires a reason", func() {
			exp := seedPending(15.5, 18, 8, 124)

			_, err := service.Reject(ctx, admin, exp.ID, &expense.RejectDTO{Reason: "   "})

			Expect(errors.Is(err, internal.ErrMissingReason)).To(BeTrue())
		})

		It("refuses to reject an already approved expense", func() {
			exp := seedPending(15.5, 18, 8, 124)
			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Reject(ctx, admin, exp.ID, &expense.RejectDTO{Reason: "too late"})

			Expect(errors.Is(err, internal.ErrAlreadyProcessed)).To(BeTrue())
		})
	})

	Describe("BulkApprove", func() {
		It("filters journey items over the variance threshold and isolates failures", func() {
			// variances: 5%, 15%, 30%
			ok := seedPending(100, 105, 8, 800)
			mid := seedPending(100, 115, 8, 800)
			far := seedPending(100, 130, 8, 800)

			result, err := service.BulkApprove(ctx, admin, &expense.BulkApproveDTO{
				ExpenseIDs:     []int64{ok.ID, mid.ID, far.ID},
				Option:         expense.OptionManualDistance,
				MaxVariancePct: f64(20),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalApproved).To(Equal(2))
			Expect(result.TotalFiltered).To(Equal(1))
			Expect(result.TotalFailed).To(BeZero())
			Expect(result.Approved[0].ExpenseID).To(Equal(ok.ID))
			Expect(result.Approved[1].ExpenseID).To(Equal(mid.ID))
		})

		It("combines approvals, failures and filtering in one batch", func() {
			// variances 5%, 15%, 30%; the 15% item cannot be approved
			ok := seedPending(100, 105, 8, 800)
			broken := seedPending(100, 115, 0, 800)
			far := seedPending(100, 130, 8, 800)

			result, err := service.BulkApprove(ctx, admin, &expense.BulkApproveDTO{
				ExpenseIDs:     []int64{ok.ID, broken.ID, far.ID},
				Option:         expense.OptionSystemDistance,
				MaxVariancePct: f64(20),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalApproved).To(Equal(1))
			Expect(result.TotalFailed).To(Equal(1))
			Expect(result.TotalFiltered).To(Equal(1))
			Expect(result.Approved[0].ExpenseID).To(Equal(ok.ID))
			Expect(result.Failed[0].ExpenseID).To(Equal(broken.ID))
		})

		It("records per-item failures and keeps going", func() {
			good := seedPending(100, 100, 8, 800)
			noRate := seedPending(100, 100, 0, 800)

			result, err := service.BulkApprove(ctx, admin, &expense.BulkApproveDTO{
				ExpenseIDs: []int64{noRate.ID, good.ID, 999},
				Option:     expense.OptionSystemDistance,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalApproved).To(Equal(1))
			Expect(result.TotalFailed).To(Equal(2))
			Expect(result.Approved[0].ExpenseID).To(Equal(good.ID))
			Expect(result.Failed[0].ExpenseID).To(Equal(noRate.ID))
			Expect(result.Failed[1].ExpenseID).To(Equal(int64(999)))
		})

		It("never rolls back earlier successes when a later item fails", func() {
			good := seedPending(100, 100, 8, 800)

			result, err := service.BulkApprove(ctx, admin, &expense.BulkApproveDTO{
				ExpenseIDs: []int64{good.ID, 999},
				Option:     expense.OptionSystemDistance,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalApproved).To(Equal(1))
			stored, err := repo.GetByID(ctx, good.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Status).To(Equal(expense.StatusApproved))
			Expect(books.debits).To(HaveLen(1))
		})

		It("rejects an empty id list", func() {
			_, err := service.BulkApprove(ctx, admin, &expense.BulkApproveDTO{Option: 1})
			_, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("UpdateExpense", func() {
		It("lets the owner edit a pending expense", func() {
			exp := seedPending(15.5, 18, 8, 124)

			updated, err := service.UpdateExpense(ctx, employee, exp.ID, &expense.UpdateExpenseDTO{
				Amount:           f64(140),
				ManualDistanceKm: f64(16),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Amount.String()).To(Equal("140"))
			Expect(updated.ManualDistanceKm.String()).To(Equal("16"))
		})

		It("blocks other employees from editing", func() {
			exp := seedPending(15.5, 18, 8, 124)
			other := &user.User{ID: 200, Role: user.RoleEmployee}

			_, err := service.UpdateExpense(ctx, other, exp.ID, &expense.UpdateExpenseDTO{Amount: f64(9000)})

			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("refuses edits once processed", func() {
			exp := seedPending(15.5, 18, 8, 124)
			_, err := service.Approve(ctx, admin, exp.ID, &expense.ApproveDTO{Option: expense.OptionSystemDistance})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.UpdateExpense(ctx, employee, exp.ID, &expense.UpdateExpenseDTO{Amount: f64(1)})

			Expect(errors.Is(err, internal.ErrAlreadyProcessed)).To(BeTrue())
		})
	})

	Describe("DeleteExpense", func() {
		It("deletes a pending expense for its owner", func() {
			exp := seedPending(15.5, 18, 8, 124)

			Expect(service.DeleteExpense(ctx, employee, exp.ID)).To(Succeed())

			_, err := repo.GetByID(ctx, exp.ID)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
		})

		It("refuses deletion inside a locked month", func() {
			exp := seedPending(15.5, 18, 8, 124)
			locks.lock(2025, 11)

			err := service.DeleteExpense(ctx, employee, exp.ID)

			Expect(errors.Is(err, internal.ErrPeriodLocked)).To(BeTrue())
		})
	})
})
