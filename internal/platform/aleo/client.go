// Package aleo reads public program state from an Aleo block-explorer API
// and builds the transaction inputs a wallet needs to call the prediction
// market program. It never signs or broadcasts anything.
package aleo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const (
	DefaultExplorerURL = "https://api.explorer.provable.com/v2/testnet"
	DefaultProgramID   = "prediction_marketv01.aleo"
)

// Program mappings.
const (
	MappingVolumes      = "market_volumes"
	MappingParticipants = "market_participants"
	MappingResolved     = "market_resolved"
	MappingWinners      = "winning_outcomes"
)

var (
	u64Value   = regexp.MustCompile(`(\d+)u64`)
	fieldValue = regexp.MustCompile(`(\d+)field`)
)

// ExplorerConfig configures an ExplorerClient.
type ExplorerConfig struct {
	BaseURL   string
	ProgramID string
	Timeout   time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero means 5/s.
	RequestsPerSecond float64
}

// ExplorerClient is the REST client for the explorer API.
type ExplorerClient struct {
	baseURL    string
	programID  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewExplorerClient creates a new explorer client, filling defaults for
// empty config fields.
func NewExplorerClient(cfg ExplorerConfig) *ExplorerClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultExplorerURL
	}
	if cfg.ProgramID == "" {
		cfg.ProgramID = DefaultProgramID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	return &ExplorerClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		programID:  cfg.ProgramID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// ProgramID returns the program the client reads mappings from.
func (c *ExplorerClient) ProgramID() string {
	return c.programID
}

// MappingValue returns the raw value stored under key in a program mapping.
// A missing entry yields ("", domain.ErrNotFound).
func (c *ExplorerClient) MappingValue(ctx context.Context, mapping, key string) (string, error) {
	path := fmt.Sprintf("/program/%s/mapping/%s/%s",
		url.PathEscape(c.programID), url.PathEscape(mapping), url.PathEscape(key))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return "", fmt.Errorf("aleo: mapping %s/%s: %w", mapping, key, err)
	}
	// The explorer returns JSON strings for plaintext values; null for absent.
	raw := strings.TrimSpace(string(body))
	if raw == "null" || raw == "" {
		return "", fmt.Errorf("aleo: mapping %s/%s: %w", mapping, key, domain.ErrNotFound)
	}
	var s string
	if json.Unmarshal(body, &s) == nil {
		return s, nil
	}
	return raw, nil
}

// MarketState reads the four per-market mappings. Entries that do not exist
// are left nil (or false for Resolved).
func (c *ExplorerClient) MarketState(ctx context.Context, chainMarketID string) (domain.ChainMarketState, error) {
	key := FieldLiteral(chainMarketID)
	state := domain.ChainMarketState{ChainMarketID: chainMarketID}

	lookup := func(mapping string) (string, bool, error) {
		v, err := c.MappingValue(ctx, mapping, key)
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return v, true, nil
	}

	if v, ok, err := lookup(MappingVolumes); err != nil {
		return state, err
	} else if ok {
		state.Volume = parseU64(v)
	}
	if v, ok, err := lookup(MappingParticipants); err != nil {
		return state, err
	} else if ok {
		state.Participants = parseU64(v)
	}
	if v, ok, err := lookup(MappingResolved); err != nil {
		return state, err
	} else if ok {
		state.Resolved = v == "true"
	}
	if v, ok, err := lookup(MappingWinners); err != nil {
		return state, err
	} else if ok {
		if m := fieldValue.FindStringSubmatch(v); m != nil {
			state.WinningOutcomeID = &m[1]
		}
	}
	return state, nil
}

// TransactionStatus asks the explorer about a transaction. Unknown ids are
// reported as pending since the explorer only lists included transactions.
func (c *ExplorerClient) TransactionStatus(ctx context.Context, txID string) (domain.TxStatus, error) {
	body, err := c.doGet(ctx, "/transaction/"+url.PathEscape(txID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TxStatusPending, nil
	}
	if err != nil {
		return domain.TxStatusUnknown, fmt.Errorf("aleo: transaction %s: %w", txID, err)
	}

	var tx struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &tx); err != nil {
		return domain.TxStatusUnknown, fmt.Errorf("aleo: decode transaction %s: %w", txID, err)
	}
	switch tx.Status {
	case "accepted":
		return domain.TxStatusConfirmed, nil
	case "rejected", "aborted":
		return domain.TxStatusFailed, nil
	default:
		return domain.TxStatusPending, nil
	}
}

// LatestHeight returns the latest block height.
func (c *ExplorerClient) LatestHeight(ctx context.Context) (int64, error) {
	body, err := c.doGet(ctx, "/latest/height")
	if err != nil {
		return 0, fmt.Errorf("aleo: latest height: %w", err)
	}
	h, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(string(body)), `"`), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("aleo: decode latest height: %w", err)
	}
	return h, nil
}

func parseU64(v string) *uint64 {
	m := u64Value.FindStringSubmatch(v)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// doGet sends a throttled GET request to the explorer.
func (c *ExplorerClient) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", domain.ErrUnavailable, statusCode)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
