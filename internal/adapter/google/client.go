package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

const defaultBaseURL = "https://floodforecasting.googleapis.com/v1"

// Client fetches gauge forecasts from the Google Flood Forecasting API.
// It implements pipeline.ForecastFetcher.
type Client struct {
	apiKey     string
	gaugeID    string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Flood Forecasting client for one gauge.
func NewClient(apiKey, gaugeID string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		gaugeID: gaugeID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Name identifies the source in logs.
func (c *Client) Name() string { return string(domain.SourceGoogle) }

// FetchForecasts returns the latest forecast issued on monitoringDate for the
// client's gauge. Forecasts issued earlier the same day are dropped.
func (c *Client) FetchForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error) {
	day := domain.DateOnly(monitoringDate)
	params := url.Values{
		"key":             {c.apiKey},
		"gaugeIds":        {c.gaugeID},
		"issuedTimeStart": {domain.FormatDate(day)},
		"issuedTimeEnd":   {domain.FormatDate(day.AddDate(0, 0, 1))},
	}
	u := c.baseURL + "/gauges:queryGaugeForecasts?" + params.Encode()

	start := time.Now()
	resp, err := c.doRequest(ctx, u)
	c.metrics.GoogleAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GoogleRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	gauge, ok := resp.Forecasts[c.gaugeID]
	if !ok || len(gauge.Forecasts) == 0 {
		c.metrics.GoogleRequests.WithLabelValues("empty").Inc()
		c.logger.Warn("no google forecasts issued", "gauge_id", c.gaugeID, "monitoring_date", domain.FormatDate(day))
		return nil, nil
	}

	var rows []domain.ForecastRow
	for _, f := range gauge.Forecasts {
		station := f.GaugeID
		if station == "" {
			station = c.gaugeID
		}
		for _, r := range f.ForecastRanges {
			rows = append(rows, domain.ForecastRow{
				MonitoringDate: day,
				Source:         domain.SourceGoogle,
				Station:        station,
				IssuedTime:     f.IssuedTime.UTC(),
				ValidTime:      r.ForecastStartTime.UTC(),
				Value:          r.Value,
			})
		}
	}
	c.metrics.GoogleRequests.WithLabelValues("success").Inc()
	return domain.LatestIssued(rows), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (queryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return queryResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return queryResponse{}, fmt.Errorf("gauge forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return queryResponse{}, fmt.Errorf("flood forecasting API error: status %d: %s", resp.StatusCode, body)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return queryResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Flood Forecasting API response types.

type queryResponse struct {
	Forecasts map[string]gaugeForecasts `json:"forecasts"`
}

type gaugeForecasts struct {
	Forecasts []forecast `json:"forecasts"`
}

type forecast struct {
	GaugeID        string          `json:"gaugeId"`
	IssuedTime     time.Time       `json:"issuedTime"`
	ForecastRanges []forecastRange `json:"forecastRanges"`
}

type forecastRange struct {
	ForecastStartTime time.Time `json:"forecastStartTime"`
	ForecastEndTime   time.Time `json:"forecastEndTime"`
	Value             float64   `json:"value"`
}
