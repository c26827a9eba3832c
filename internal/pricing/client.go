package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "optpricer/internal/errors"
	"optpricer/internal/infrastructure"
	"optpricer/pkg/contracts/domain"
)

// Service endpoints
const (
	EndpointIVol  = "getIVol"
	EndpointPrice = "getPriceVanilla"
)

// Response formats
const (
	FormatAuto  = "auto"
	FormatJSON  = "json"
	FormatPlain = "plain"
)

const (
	ivolPath  = "/" + EndpointIVol + "/{as_of_date}/{expiration_date}/{strike}/{parity}/{future_value}/{market_price}/{rf_rate}"
	pricePath = "/" + EndpointPrice + "/{as_of_date}/{expiration_date}/{strike}/{parity}/{future_value}/{ivol}/{rf_rate}"
)

// jsonValueKeys are tried in order when a response is a JSON object
var jsonValueKeys = []string{"price", "ivol", "value"}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL        string
	ResponseFormat string
	// Timeout of zero leaves requests unbounded
	Timeout time.Duration
}

// Client calls the pricing service
type Client struct {
	http    *resty.Client
	format  string
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewClient creates a pricing service client. metrics may be nil.
func NewClient(opts ClientOptions, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "pricing_client"))

	format := strings.ToLower(opts.ResponseFormat)
	if format == "" {
		format = FormatAuto
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetLogger(restyLogger{logger}).
		SetHeader("Accept", "application/json, text/plain")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:    rc,
		format:  format,
		metrics: metrics,
		logger:  logger,
	}
}

// GetIVol asks the service for the implied volatility of one option
func (c *Client) GetIVol(ctx context.Context, req domain.VolatilityRequest) (float64, error) {
	return c.get(ctx, EndpointIVol, ivolPath, map[string]string{
		"as_of_date":      req.AsOfDate,
		"expiration_date": req.ExpirationDate,
		"strike":          formatFloat(req.Strike),
		"parity":          req.Parity,
		"future_value":    formatFloat(req.FutureValue),
		"market_price":    formatFloat(req.MarketPrice),
		"rf_rate":         formatFloat(req.RFRate),
	}, req.Scheme, req.Model)
}

// GetPriceVanilla asks the service for the price of one vanilla option
func (c *Client) GetPriceVanilla(ctx context.Context, p domain.PricingPayload) (float64, error) {
	return c.get(ctx, EndpointPrice, pricePath, map[string]string{
		"as_of_date":      p.AsOfDate,
		"expiration_date": p.ExpirationDate,
		"strike":          formatFloat(p.Strike),
		"parity":          p.Parity,
		"future_value":    formatFloat(p.FutureValue),
		"ivol":            formatFloat(p.IVol),
		"rf_rate":         formatFloat(p.RFRate),
	}, p.Scheme, p.Model)
}

func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string, scheme domain.Scheme, model string) (float64, error) {
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetQueryParams(map[string]string{
			"scheme": string(scheme),
			"model":  model,
		}).
		Get(path)

	if err != nil {
		c.metrics.RecordPricingRequest(ctx, endpoint, false, time.Since(start))
		return 0, apperrors.NewNetworkError(endpoint+" request failed", err)
	}

	c.logger.DebugContext(ctx, "pricing service responded",
		slog.String("endpoint", endpoint),
		slog.String("url", resp.Request.URL),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("duration", resp.Time()))

	if resp.IsError() {
		c.metrics.RecordPricingRequest(ctx, endpoint, false, time.Since(start))
		return 0, apperrors.NewNetworkError(
			fmt.Sprintf("%s returned %s: %s", endpoint, resp.Status(), truncate(resp.String(), 200)), nil).
			WithContext("status", resp.StatusCode())
	}

	v, err := c.parse(resp.Header().Get("Content-Type"), resp.Body())
	c.metrics.RecordPricingRequest(ctx, endpoint, err == nil, time.Since(start))
	if err != nil {
		return 0, apperrors.NewParsingError(endpoint+" response", err)
	}
	return v, nil
}

func (c *Client) parse(contentType string, body []byte) (float64, error) {
	text := strings.TrimSpace(string(body))
	switch c.format {
	case FormatPlain:
		return parsePlain(text)
	case FormatJSON:
		return parseJSON(body)
	}

	if strings.Contains(contentType, "json") || strings.HasPrefix(text, "{") {
		return parseJSON(body)
	}
	return parsePlain(text)
}

func parsePlain(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Trim(text, `"`), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", truncate(text, 80))
	}
	return v, nil
}

func parseJSON(body []byte) (float64, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("invalid JSON: %w", err)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case map[string]any:
		for _, key := range jsonValueKeys {
			if f, ok := v[key].(float64); ok {
				return f, nil
			}
		}
		return 0, fmt.Errorf("no numeric %s field in response", strings.Join(jsonValueKeys, "/"))
	default:
		return 0, fmt.Errorf("unexpected JSON value %T", raw)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// restyLogger routes resty's own messages to slog
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
