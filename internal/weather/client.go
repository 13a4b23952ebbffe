// Package weather reads marine forecasts from Open-Meteo.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/resilience"
)

const DefaultBaseURL = "https://api.open-meteo.com/v1"

var ErrNoData = errors.New("weather data unavailable")

type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

type Forecast struct {
	MaxWindSpeedMS float64 `json:"max_wind_speed_ms"`
	MaxWindSpeedKn float64 `json:"max_wind_speed_kn"`
	MaxWaveHeightM float64 `json:"max_wave_height_m"`
	RiskLevel      Level   `json:"risk_level"`
	Summary        string  `json:"summary"`
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("open-meteo"), logger),
	}
}

type forecastResponse struct {
	Hourly struct {
		WindSpeed  []float64 `json:"wind_speed_10m"`
		WaveHeight []float64 `json:"wave_height"`
	} `json:"hourly"`
}

// Forecast returns the worst conditions expected at a position over the next days (1-7).
func (c *Client) Forecast(ctx context.Context, lat, lon float64, days int) (Forecast, error) {
	if days < 1 {
		days = 1
	}
	if days > 7 {
		days = 7
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("hourly", "wind_speed_10m,wave_height,precipitation")
	q.Set("wind_speed_unit", "ms")
	q.Set("forecast_days", strconv.Itoa(days))

	parsed, err := resilience.Call(c.breaker, func() (forecastResponse, error) {
		return c.get(ctx, c.baseURL+"/forecast?"+q.Encode())
	})
	if err != nil {
		return Forecast{}, err
	}

	if len(parsed.Hourly.WindSpeed) == 0 {
		return Forecast{}, ErrNoData
	}

	maxWind := maxOf(parsed.Hourly.WindSpeed)
	return Forecast{
		MaxWindSpeedMS: maxWind,
		MaxWindSpeedKn: maxWind * 1.944,
		MaxWaveHeightM: maxOf(parsed.Hourly.WaveHeight),
		RiskLevel:      Assess(maxWind),
		Summary:        fmt.Sprintf("Max wind %.1f m/s in next %d days", maxWind, days),
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (forecastResponse, error) {
	var out forecastResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("open-meteo status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode open-meteo response: %w", err)
	}
	return out, nil
}

func Assess(windMS float64) Level {
	switch {
	case windMS > 20:
		return LevelCritical
	case windMS > 15:
		return LevelHigh
	case windMS > 10:
		return LevelMedium
	default:
		return LevelLow
	}
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
