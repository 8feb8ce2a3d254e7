package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/utils"
)

// GatewayConfig configures one HTTP market-data gateway adapter.
type GatewayConfig struct {
	Name       string
	ServiceURL string
	Timeout    time.Duration
}

// GatewayClient adapts an HTTP market-data gateway into the Adapter
// interface. The gateway speaks a simple JSON history API; the client
// renames its fields onto the canonical raw-table columns.
type GatewayClient struct {
	name       string
	httpClient *http.Client
	baseURL    string
}

// historyResponse is the gateway's history payload.
type historyResponse struct {
	Symbol string           `json:"symbol"`
	Rows   []historyBarJSON `json:"rows"`
}

type historyBarJSON struct {
	Date      string `json:"date"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Amount    string `json:"amount,omitempty"`
	PctChange string `json:"pct_change,omitempty"`
}

// NewGatewayClient creates an adapter for one gateway endpoint.
func NewGatewayClient(cfg GatewayConfig) (*GatewayClient, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("gateway %s: service URL is required", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GatewayClient{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.ServiceURL, "/"),
	}, nil
}

// Name returns the adapter identifier.
func (c *GatewayClient) Name() string {
	return c.name
}

// FetchRaw retrieves history rows from the gateway and maps them onto the
// canonical raw-table columns. Timeouts, connection failures and 429
// responses are classified transient; malformed payloads are not.
func (c *GatewayClient) FetchRaw(ctx context.Context, canonicalSymbol string, market models.Market, dateRange models.DateRange, timeframe models.Timeframe) (*RawTable, error) {
	path := fmt.Sprintf("/api/history/%s/%s", market, url.PathEscape(canonicalSymbol))
	params := url.Values{}
	params.Set("start", dateRange.Start.Format("2006-01-02"))
	params.Set("end", dateRange.End.Format("2006-01-02"))
	params.Set("timeframe", timeframe.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "marketlens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, utils.NewTransientError(utils.KindRateLimit, fmt.Errorf("gateway returned 429"))
	case resp.StatusCode >= 500:
		return nil, utils.NewTransientError(utils.KindConnection, fmt.Errorf("gateway returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewTransientError(utils.KindConnection, fmt.Errorf("failed to read response: %w", err))
	}

	var payload historyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed gateway response: %w", err)
	}

	return tableFromRows(payload.Rows), nil
}

func tableFromRows(rows []historyBarJSON) *RawTable {
	table := &RawTable{
		Columns: []string{ColumnDate, ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume, ColumnAmount, ColumnPctChange},
		Rows:    make([]RawRow, 0, len(rows)),
	}
	for _, r := range rows {
		row := RawRow{
			ColumnDate:   r.Date,
			ColumnOpen:   r.Open,
			ColumnHigh:   r.High,
			ColumnLow:    r.Low,
			ColumnClose:  r.Close,
			ColumnVolume: r.Volume,
		}
		if r.Amount != "" {
			row[ColumnAmount] = r.Amount
		}
		if r.PctChange != "" {
			row[ColumnPctChange] = r.PctChange
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func classifyHTTPError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return utils.NewTransientError(utils.KindTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.NewTransientError(utils.KindTimeout, err)
	}
	return utils.NewTransientError(utils.KindConnection, err)
}
