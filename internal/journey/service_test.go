package journey_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/audit"
	"github.com/waypoint-hq/field-expense/internal/distance"
	"github.com/waypoint-hq/field-expense/internal/expense"
	"github.com/waypoint-hq/field-expense/internal/journey"
	"github.com/waypoint-hq/field-expense/internal/user"
)

func TestJourney(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Journey Suite")
}

// Mock repository for testing
type mockJourneyRepository struct {
	mu        sync.Mutex
	journeys  map[int64]*journey.Journey
	durations map[int64]decimal.Decimal
	nextID    int64
}

func newMockJourneyRepository() *mockJourneyRepository {
	return &mockJourneyRepository{
		journeys:  make(map[int64]*journey.Journey),
		durations: make(map[int64]decimal.Decimal),
		nextID:    1,
	}
}

func (m *mockJourneyRepository) Create(ctx context.Context, j *journey.Journey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = m.nextID
	m.nextID++
	cp := *j
	m.journeys[j.ID] = &cp
	return nil
}

func (m *mockJourneyRepository) GetByID(ctx context.Context, id int64) (*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.journeys[id]
	if !ok {
		return nil, internal.ErrJourneyNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *mockJourneyRepository) GetActiveByUser(ctx context.Context, userID int64) (*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.journeys {
		if j.UserID == userID && j.IsActive() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, internal.ErrJourneyNotFound
}

func (m *mockJourneyRepository) Update(ctx context.Context, j *journey.Journey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.journeys[j.ID] = &cp
	return nil
}

func (m *mockJourneyRepository) SetDuration(ctx context.Context, id int64, durationMin decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[id] = durationMin
	return nil
}

func (m *mockJourneyRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*journey.Journey, 0)
	for _, j := range m.journeys {
		if j.UserID == userID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Mock expense spawner for testing
type mockSpawner struct {
	inputs   []expense.JourneyExpenseInput
	spawnErr error
}

func (m *mockSpawner) CreateJourneyExpense(ctx context.Context, in expense.JourneyExpenseInput) (*expense.Expense, error) {
	if m.spawnErr != nil {
		return nil, m.spawnErr
	}
	m.inputs = append(m.inputs, in)
	return &expense.Expense{
		ID:               int64(len(m.inputs)),
		UserID:           in.UserID,
		JourneyID:        &in.JourneyID,
		Category:         expense.CategoryJourney,
		ExpenseType:      expense.TypeTravel,
		Amount:           in.SystemDistanceKm.Mul(in.Rate).Round(2),
		SystemDistanceKm: in.SystemDistanceKm,
		ManualDistanceKm: in.ManualDistanceKm,
		DistanceRate:     in.Rate,
		Status:           expense.StatusPending,
	}, nil
}

// Mock estimator for testing
type mockEstimator struct {
	mu          sync.Mutex
	durationMin decimal.Decimal
	durationErr error
	calls       int
}

func (m *mockEstimator) Estimate(ctx context.Context, origin, dest distance.Coordinate, opts distance.EstimateOptions) (*distance.Estimate, error) {
	return &distance.Estimate{
		DistanceKm: distance.Haversine(origin, dest),
		Source:     distance.SourceHaversine,
	}, nil
}

func (m *mockEstimator) Duration(ctx context.Context, origin, dest distance.Coordinate) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.durationErr != nil {
		return decimal.Zero, m.durationErr
	}
	return m.durationMin, nil
}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, action string, actorID int64, targetType string, targetID int64, metadata any) {
}

var _ audit.Recorder = noopRecorder{}

func f64(v float64) *float64 { return &v }

var _ = Describe("JourneyService", func() {
	var (
		service   *journey.Service
		repo      *mockJourneyRepository
		spawner   *mockSpawner
		estimator *mockEstimator
		employee  *user.User
	)

	ctx := context.Background()

	// Mumbai -> Pune, 120.15 km great-circle
	startDTO := &journey.StartJourneyDTO{StartLat: 19.0760, StartLng: 72.8777}
	endDTO := &journey.EndJourneyDTO{EndLat: 18.5204, EndLng: 73.8567}

	BeforeEach(func() {
		repo = newMockJourneyRepository()
		spawner = &mockSpawner{}
		estimator = &mockEstimator{durationMin: decimal.NewFromInt(165)}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = journey.NewService(repo, spawner, estimator, &internal.RatesConfig{}, noopRecorder{}, logger)

		employee = &user.User{ID: 7, Role: user.RoleEmployee}
	})

	Describe("Start", func() {
		It("opens an active journey at the given coordinates", func() {
			j, err := service.Start(ctx, employee, startDTO)

			Expect(err).ToNot(HaveOccurred())
			Expect(j.Status).To(Equal(journey.StatusActive))
			Expect(j.UserID).To(Equal(employee.ID))
			Expect(j.StartedAt).ToNot(BeZero())
		})

		It("refuses a second active journey for the same employee", func() {
			_, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Start(ctx, employee, startDTO)

			Expect(errors.Is(err, internal.ErrDuplicateActiveJourney)).To(BeTrue())
		})

		It("allows a new journey after the previous one completed", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.End(ctx, employee, j.ID, endDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Start(ctx, employee, startDTO)

			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects invalid coordinates", func() {
			_, err := service.Start(ctx, employee, &journey.StartJourneyDTO{StartLat: 95})

			Expect(errors.Is(err, internal.ErrInvalidCoordinate)).To(BeTrue())
		})
	})

	Describe("End", func() {
		It("completes the journey and spawns a travel expense priced at distance times rate", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			result, err := service.End(ctx, employee, j.ID, endDTO)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Journey.Status).To(Equal(journey.StatusCompleted))
			Expect(result.Journey.DistanceKm.String()).To(Equal("120.15"))
			Expect(result.Journey.DistanceSource).To(Equal(string(distance.SourceHaversine)))
			Expect(result.Journey.EndedAt).ToNot(BeNil())
			Expect(result.Journey.ExpenseID).ToNot(BeNil())

			Expect(result.Expense.Status).To(Equal(expense.StatusPending))
			// 120.15 km at the default 8/km rate
			Expect(result.Expense.Amount.String()).To(Equal("961.2"))
			Expect(result.Expense.DistanceRate.String()).To(Equal("8"))
		})

		It("defaults the manual distance to the system distance", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.End(ctx, employee, j.ID, endDTO)

			Expect(err).ToNot(HaveOccurred())
			Expect(spawner.inputs).To(HaveLen(1))
			in := spawner.inputs[0]
			Expect(in.ManualDistanceKm.Equal(in.SystemDistanceKm)).To(BeTrue())
		})

		It("keeps an employee-reported manual distance", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			dto := &journey.EndJourneyDTO{EndLat: 18.5204, EndLng: 73.8567, ManualDistanceKm: f64(148.3)}
			_, err = service.End(ctx, employee, j.ID, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(spawner.inputs[0].ManualDistanceKm.String()).To(Equal("148.3"))
			Expect(spawner.inputs[0].SystemDistanceKm.String()).To(Equal("120.15"))
		})

		It("persists the remote duration after the response, without altering it", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			result, err := service.End(ctx, employee, j.ID, endDTO)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Journey.DurationMin).To(BeNil())
			Eventually(func() string {
				repo.mu.Lock()
				defer repo.mu.Unlock()
				return repo.durations[j.ID].String()
			}).Should(Equal("165"))
		})

		It("still completes when the duration lookup fails", func() {
			estimator.durationErr = errors.New("matrix unavailable")
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			result, err := service.End(ctx, employee, j.ID, endDTO)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Journey.Status).To(Equal(journey.StatusCompleted))
		})

		It("refuses to end a journey twice", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.End(ctx, employee, j.ID, endDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.End(ctx, employee, j.ID, endDTO)

			Expect(errors.Is(err, internal.ErrJourneyNotActive)).To(BeTrue())
		})

		It("blocks other employees from ending someone else's journey", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			other := &user.User{ID: 99, Role: user.RoleEmployee}
			_, err = service.End(ctx, other, j.ID, endDTO)

			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})
	})

	Describe("Cancel", func() {
		It("cancels an active journey without spawning an expense", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			cancelled, err := service.Cancel(ctx, employee, j.ID, &journey.CancelJourneyDTO{Reason: "customer visit called off"})

			Expect(err).ToNot(HaveOccurred())
			Expect(cancelled.Status).To(Equal(journey.StatusCancelled))
			Expect(cancelled.CancelReason).To(Equal("customer visit called off"))
			Expect(spawner.inputs).To(BeEmpty())
		})

		It("requires a reason", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Cancel(ctx, employee, j.ID, &journey.CancelJourneyDTO{Reason: ""})

			Expect(errors.Is(err, internal.ErrMissingReason)).To(BeTrue())
		})

		It("refuses to cancel a completed journey", func() {
			j, err := service.Start(ctx, employee, startDTO)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.End(ctx, employee, j.ID, endDTO)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Cancel(ctx, employee, j.ID, &journey.CancelJourneyDTO{Reason: "oops"})

			Expect(errors.Is(err, internal.ErrJourneyNotActive)).To(BeTrue())
		})
	})
})
