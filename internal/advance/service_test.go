package advance_test

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
	"github.com/waypoint-hq/field-expense/internal/advance"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"github.com/waypoint-hq/field-expense/internal/user"
)

func TestAdvance(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Advance Suite")
}

// Mock repository for testing
type mockAdvanceRepository struct {
	advances map[int64]*advance.Advance
	deleted  map[int64]bool
	nextID   int64
}

func newMockAdvanceRepository() *mockAdvanceRepository {
	return &mockAdvanceRepository{
		advances: make(map[int64]*advance.Advance),
		deleted:  make(map[int64]bool),
		nextID:   1,
	}
}

func (m *mockAdvanceRepository) Create(ctx context.Context, a *advance.Advance) error {
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now()
	cp := *a
	m.advances[a.ID] = &cp
	return nil
}

func (m *mockAdvanceRepository) GetByID(ctx context.Context, id int64) (*advance.Advance, error) {
	a, ok := m.advances[id]
	if !ok || m.deleted[id] {
		return nil, internal.ErrAdvanceNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAdvanceRepository) Update(ctx context.Context, a *advance.Advance) error {
	cp := *a
	m.advances[a.ID] = &cp
	return nil
}

func (m *mockAdvanceRepository) SoftDelete(ctx context.Context, id int64) error {
	m.deleted[id] = true
	return nil
}

func (m *mockAdvanceRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*advance.Advance, error) {
	out := make([]*advance.Advance, 0)
	for _, a := range m.advances {
		if a.UserID == userID && !m.deleted[a.ID] {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Mock ledger for testing
type mockLedger struct {
	balance decimal.Decimal
}

func (m *mockLedger) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error) {
	before := m.balance
	m.balance = m.balance.Add(amount)
	return &ledger.Movement{UserID: userID, Before: before, After: m.balance}, nil
}

func (m *mockLedger) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error) {
	before := m.balance
	m.balance = m.balance.Sub(amount)
	return &ledger.Movement{UserID: userID, Before: before, After: m.balance}, nil
}

// Mock user getter for testing
type mockUserGetter struct {
	users map[int64]*user.User
}

func (m *mockUserGetter) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, action string, actorID int64, targetType string, targetID int64, metadata any) {
}

var _ = Describe("AdvanceService", func() {
	var (
		service *advance.Service
		repo    *mockAdvanceRepository
		books   *mockLedger
		admin   *user.User
	)

	ctx := context.Background()
	const employeeID = int64(7)

	BeforeEach(func() {
		repo = newMockAdvanceRepository()
		books = &mockLedger{balance: decimal.Zero}
		users := &mockUserGetter{users: map[int64]*user.User{
			employeeID: {ID: employeeID, Role: user.RoleEmployee, IsActive: true},
		}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = advance.NewService(repo, books, users, noopRecorder{}, logger)

		admin = &user.User{ID: 1, Role: user.RoleAdmin}
	})

	Describe("Create", func() {
		It("defaults to completed and credits the balance immediately", func() {
			resp, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodBankTransfer,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(advance.StatusCompleted))
			Expect(resp.CompletedAt).ToNot(BeNil())
			Expect(*resp.BalanceBefore).To(Equal(0.00))
			Expect(*resp.BalanceAfter).To(Equal(5000.00))
			Expect(books.balance.String()).To(Equal("5000"))
		})

		It("leaves pending advances off the books", func() {
			resp, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        3000,
				PaymentMethod: advance.PaymentMethodCash,
				Status:        advance.StatusPending,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(advance.StatusPending))
			Expect(resp.BalanceAfter).To(BeNil())
			Expect(books.balance.IsZero()).To(BeTrue())
		})

		It("notes when the advance clears a negative balance", func() {
			books.balance = decimal.NewFromInt(-1200)

			resp, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodUPI,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(*resp.BalanceAfter).To(Equal(3800.00))
			Expect(resp.Note).To(Equal("negative balance cleared; surplus of 3800.00"))
		})

		It("rejects non-positive amounts", func() {
			_, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        0,
				PaymentMethod: advance.PaymentMethodCash,
			})

			_, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
		})

		It("rejects unknown payment methods", func() {
			_, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        100,
				PaymentMethod: "crypto",
			})

			_, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
		})

		It("rejects advances for unknown users", func() {
			_, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        404,
				Amount:        100,
				PaymentMethod: advance.PaymentMethodCash,
			})

			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("Complete", func() {
		It("credits the balance when a pending advance completes", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        3000,
				PaymentMethod: advance.PaymentMethodCheque,
				Status:        advance.StatusPending,
			})
			Expect(err).ToNot(HaveOccurred())

			resp, err := service.Complete(ctx, admin, created.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(advance.StatusCompleted))
			Expect(*resp.BalanceAfter).To(Equal(3000.00))
		})

		It("refuses to complete a non-pending advance", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        3000,
				PaymentMethod: advance.PaymentMethodCash,
			})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Complete(ctx, admin, created.ID)

			Expect(errors.Is(err, internal.ErrAdvanceNotPending)).To(BeTrue())
		})
	})

	Describe("Cancel", func() {
		It("debits back a completed advance", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodBankTransfer,
			})
			Expect(err).ToNot(HaveOccurred())

			resp, err := service.Cancel(ctx, admin, created.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(advance.StatusCancelled))
			Expect(books.balance.IsZero()).To(BeTrue())
		})

		It("leaves the balance alone when cancelling a pending advance", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodCash,
				Status:        advance.StatusPending,
			})
			Expect(err).ToNot(HaveOccurred())

			resp, err := service.Cancel(ctx, admin, created.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.BalanceAfter).To(BeNil())
			Expect(books.balance.IsZero()).To(BeTrue())
		})

		It("refuses to cancel twice", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodCash,
			})
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Cancel(ctx, admin, created.ID)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Cancel(ctx, admin, created.ID)

			Expect(errors.Is(err, internal.ErrAlreadyProcessed)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("debits back the credit before soft-deleting a completed advance", func() {
			created, err := service.Create(ctx, admin, &advance.CreateAdvanceDTO{
				UserID:        employeeID,
				Amount:        5000,
				PaymentMethod: advance.PaymentMethodBankTransfer,
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(service.Delete(ctx, admin, created.ID)).To(Succeed())

			Expect(books.balance.IsZero()).To(BeTrue())
			_, err = repo.GetByID(ctx, created.ID)
			Expect(errors.Is(err, internal.ErrAdvanceNotFound)).To(BeTrue())
		})
	})
})
