package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Route is a remote distance-matrix result.
type Route struct {
	DistanceKm  decimal.Decimal
	DurationMin decimal.Decimal
}

// Oracle is the optional remote lookup capability. A nil Oracle means the
// estimator runs Haversine-only.
type Oracle interface {
	Route(ctx context.Context, origin, dest Coordinate) (*Route, error)
}

// ErrRateLimited marks transient rate-limit responses; only these are
// retried with backoff, everything else falls back immediately.
var ErrRateLimited = errors.New("distance oracle rate limited")

type MatrixClientConfig struct {
	BaseURL        string
	APIKey         string
	AttemptTimeout time.Duration
}

// MatrixClient queries a third-party distance-matrix HTTP API. Each attempt
// is bounded by AttemptTimeout; retry policy lives in the Estimator.
type MatrixClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewMatrixClient(cfg MatrixClientConfig, logger *slog.Logger) *MatrixClient {
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MatrixClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *MatrixClient) Route(ctx context.Context, origin, dest Coordinate) (*Route, error) {
	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destinations", fmt.Sprintf("%f,%f", dest.Lat, dest.Lng))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/distancematrix?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matrix API returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Distance struct {
					Value int64 `json:"value"` // metres
				} `json:"distance"`
				Duration struct {
					Value int64 `json:"value"` // seconds
				} `json:"duration"`
			} `json:"elements"`
		} `json:"rows"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode matrix response: %w", err)
	}

	if apiResponse.Status == "OVER_QUERY_LIMIT" {
		return nil, ErrRateLimited
	}
	if apiResponse.Status != "OK" {
		return nil, fmt.Errorf("matrix API status %q", apiResponse.Status)
	}
	if len(apiResponse.Rows) == 0 || len(apiResponse.Rows[0].Elements) == 0 {
		return nil, errors.New("matrix response has no route element")
	}

	el := apiResponse.Rows[0].Elements[0]
	if el.Status != "OK" {
		return nil, fmt.Errorf("matrix element status %q", el.Status)
	}

	return &Route{
		DistanceKm:  decimal.NewFromInt(el.Distance.Value).Div(decimal.NewFromInt(1000)).Round(2),
		DurationMin: decimal.NewFromInt(el.Duration.Value).Div(decimal.NewFromInt(60)).Round(2),
	}, nil
}
