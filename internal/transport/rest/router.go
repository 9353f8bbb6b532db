package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/waypoint-hq/field-expense/internal/advance"
	"github.com/waypoint-hq/field-expense/internal/auth"
	"github.com/waypoint-hq/field-expense/internal/expense"
	"github.com/waypoint-hq/field-expense/internal/journey"
	"github.com/waypoint-hq/field-expense/internal/monthlock"
	"github.com/waypoint-hq/field-expense/internal/transport/middleware"
	"github.com/waypoint-hq/field-expense/internal/transport/swagger"
	"github.com/waypoint-hq/field-expense/internal/user"
)

// Handlers carries the feature handlers the router mounts.
type Handlers struct {
	Auth     *auth.Middleware
	Users    *user.Handler
	Journeys *journey.Handler
	Expenses *expense.Handler
	Advances *advance.Handler
	Locks    *monthlock.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// OpenAPI document and swagger UI are public
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// everything else requires a bearer token
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.Authenticate)

			pr.Get("/users/me", h.Users.GetCurrentUser)
			pr.Get("/users/{id}/balance", h.Users.GetBalance)

			pr.Route("/journeys", func(jr chi.Router) {
				jr.Post("/start", h.Journeys.StartJourney)
				jr.Post("/{id}/end", h.Journeys.EndJourney)
				jr.Post("/{id}/cancel", h.Journeys.CancelJourney)
				jr.Get("/", h.Journeys.ListJourneys)
				jr.Get("/{id}", h.Journeys.GetJourney)
			})

			pr.Route("/expenses", func(er chi.Router) {
				er.Post("/", h.Expenses.CreateExpense)
				er.Get("/", h.Expenses.ListExpenses)
				er.Get("/{id}", h.Expenses.GetExpense)
				er.Patch("/{id}", h.Expenses.UpdateExpense)
				er.Delete("/{id}", h.Expenses.DeleteExpense)

				// approval surface is admin-only
				er.Group(func(ar chi.Router) {
					ar.Use(h.Auth.RequireAdmin)
					ar.Patch("/{id}/approve", h.Expenses.ApproveExpense)
					ar.Patch("/{id}/reject", h.Expenses.RejectExpense)
					ar.Post("/bulk-approve", h.Expenses.BulkApproveExpenses)
				})
			})

			pr.Get("/advances", h.Advances.ListAdvances)
			pr.Get("/month-locks", h.Locks.ListLocks)

			pr.Group(func(ar chi.Router) {
				ar.Use(h.Auth.RequireAdmin)

				ar.Get("/users", h.Users.ListUsers)
				ar.Post("/advances", h.Advances.CreateAdvance)
				ar.Patch("/advances/{id}/status", h.Advances.UpdateAdvanceStatus)
				ar.Delete("/advances/{id}", h.Advances.DeleteAdvance)
				ar.Post("/month-locks", h.Locks.LockMonth)
				ar.Delete("/month-locks", h.Locks.UnlockMonth)
			})
		})
	})
}
