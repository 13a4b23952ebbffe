package emissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/shiroonigami23-ui/ecoroute/internal/resilience"
)

const DefaultCarbonInterfaceURL = "https://www.carboninterface.com/api/v1"

// CarbonInterface asks the Carbon Interface shipping estimate API and falls
// back to the local model on any failure.
type CarbonInterface struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	breaker  *resilience.Breaker
	fallback Model
	logger   *slog.Logger
}

func NewCarbonInterface(baseURL, apiKey string, fallback Model, logger *slog.Logger) *CarbonInterface {
	if baseURL == "" {
		baseURL = DefaultCarbonInterfaceURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CarbonInterface{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerConfig("carbon-interface"), logger),
		fallback: fallback,
		logger:   logger,
	}
}

type estimateRequest struct {
	Type            string  `json:"type"`
	WeightValue     float64 `json:"weight_value"`
	WeightUnit      string  `json:"weight_unit"`
	DistanceValue   float64 `json:"distance_value"`
	DistanceUnit    string  `json:"distance_unit"`
	TransportMethod string  `json:"transport_method"`
}

type estimateResponse struct {
	Data struct {
		Attributes struct {
			CarbonKg float64 `json:"carbon_kg"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *CarbonInterface) Estimate(ctx context.Context, distanceKm, cargoWeightTons float64) (Estimate, error) {
	if c.apiKey == "" {
		return c.fallback.Estimate(ctx, distanceKm, cargoWeightTons)
	}

	kg, err := resilience.Call(c.breaker, func() (float64, error) {
		return backoff.Retry(ctx, func() (float64, error) {
			return c.request(ctx, distanceKm, cargoWeightTons)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(2))
	})
	if err != nil {
		if ctx.Err() != nil {
			return Estimate{}, ctx.Err()
		}
		c.logger.Warn("carbon interface unavailable, using emissions model",
			"distance_km", distanceKm, "cargo_weight_tons", cargoWeightTons, "error", err)
		return c.fallback.Estimate(ctx, distanceKm, cargoWeightTons)
	}

	return newEstimate(kg, distanceKm, cargoWeightTons, SourceCarbonInterface), nil
}

func (c *CarbonInterface) request(ctx context.Context, distanceKm, tons float64) (float64, error) {
	body, err := json.Marshal(estimateRequest{
		Type:            "shipping",
		WeightValue:     tons,
		WeightUnit:      "mt",
		DistanceValue:   distanceKm,
		DistanceUnit:    "km",
		TransportMethod: "ship",
	})
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/estimates", bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("carbon interface status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode < 500 {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	var parsed estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("decode carbon interface response: %w", err))
	}
	if parsed.Data.Attributes.CarbonKg <= 0 {
		return 0, backoff.Permanent(fmt.Errorf("carbon interface returned no estimate"))
	}
	return parsed.Data.Attributes.CarbonKg, nil
}
