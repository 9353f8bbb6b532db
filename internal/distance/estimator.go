package distance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceHaversine Source = "haversine"
	SourceMatrix    Source = "matrix"
)

type Estimate struct {
	DistanceKm     decimal.Decimal  `json:"distance_km"`
	DurationMin    *decimal.Decimal `json:"duration_min,omitempty"`
	Source         Source           `json:"source"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
}

type EstimateOptions struct {
	// PreferRemote asks the oracle for the route; on any non-retryable
	// failure or retry exhaustion the estimate falls back to Haversine.
	PreferRemote bool
}

// Estimator computes travel distances. Haversine is the authoritative
// system distance; the oracle only enriches estimates with a duration and
// its failures are never surfaced to callers.
type Estimator struct {
	oracle         Oracle
	maxRetries     int
	initialBackoff time.Duration
	logger         *slog.Logger
}

func NewEstimator(oracle Oracle, maxRetries int, initialBackoff time.Duration, logger *slog.Logger) *Estimator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialBackoff <= 0 {
		initialBackoff = 200 * time.Millisecond
	}
	return &Estimator{
		oracle:         oracle,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		logger:         logger,
	}
}

func (e *Estimator) Estimate(ctx context.Context, origin, dest Coordinate, opts EstimateOptions) (*Estimate, error) {
	if err := origin.Validate(); err != nil {
		return nil, err
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	if opts.PreferRemote && e.oracle != nil {
		route, err := e.routeWithRetry(ctx, origin, dest)
		if err == nil {
			dur := route.DurationMin
			return &Estimate{
				DistanceKm:  route.DistanceKm,
				DurationMin: &dur,
				Source:      SourceMatrix,
			}, nil
		}

		e.logger.Warn("distance oracle failed, falling back to haversine", "error", err)
		return &Estimate{
			DistanceKm:     Haversine(origin, dest),
			Source:         SourceHaversine,
			FallbackReason: err.Error(),
		}, nil
	}

	est := &Estimate{
		DistanceKm: Haversine(origin, dest),
		Source:     SourceHaversine,
	}
	if opts.PreferRemote && e.oracle == nil {
		est.FallbackReason = "no distance oracle configured"
	}
	return est, nil
}

// Duration asks the oracle for the travel duration in minutes. Used by the
// journey service as best-effort enrichment after the response has been
// sent; callers must treat errors as non-fatal.
func (e *Estimator) Duration(ctx context.Context, origin, dest Coordinate) (decimal.Decimal, error) {
	if e.oracle == nil {
		return decimal.Zero, errors.New("no distance oracle configured")
	}
	route, err := e.routeWithRetry(ctx, origin, dest)
	if err != nil {
		return decimal.Zero, err
	}
	return route.DurationMin, nil
}

// routeWithRetry retries only on rate-limit signals, with exponential
// backoff starting at initialBackoff.
func (e *Estimator) routeWithRetry(ctx context.Context, origin, dest Coordinate) (*Route, error) {
	backoff := e.initialBackoff

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		route, err := e.oracle.Route(ctx, origin, dest)
		if err == nil {
			return route, nil
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		if attempt == e.maxRetries {
			break
		}

		e.logger.Debug("distance oracle rate limited, backing off",
			"attempt", attempt+1,
			"backoff", backoff.String())

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}

	return nil, lastErr
}
