package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient"
	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
)

const (
	// DefaultAPIURL is the public Osmosis LCD endpoint.
	DefaultAPIURL = "https://osmosis-lcd.quickapi.com"
	// ContractAddress is the fast-transfer gateway contract whose fills are indexed.
	ContractAddress = "osmo1vy34lpt5zlj797w7zqdta3qfq834kapx88qtgudy7jgljztj567s73ny82"
	// OrderFilledAction is the wasm.action attribute emitted on a fill.
	OrderFilledAction = "order_filled"

	OrderByDesc = "ORDER_BY_DESC"
	OrderByAsc  = "ORDER_BY_ASC"

	txsPath        = "/cosmos/tx/v1beta1/txs"
	searchMethod   = "GetTxsEvent"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// ErrUnexpectedStatus is returned when the LCD answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// OrderFilledQuery is the event query selecting order_filled events of contract.
func OrderFilledQuery(contract string) string {
	return fmt.Sprintf("wasm._contract_address='%s' AND wasm.action='%s'", contract, OrderFilledAction)
}

// Client queries the Cosmos LCD tx search endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.TxSearcher = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a new LCD client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchTxs performs one GET against the tx search endpoint.
func (c *Client) SearchTxs(ctx context.Context, req types.TxSearchRequest) (*types.TxSearchResult, error) {
	start := time.Now()
	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	res, err := c.search(ctx, req)
	c.metrics.RecordRPCCall(searchMethod, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) search(ctx context.Context, req types.TxSearchRequest) (*types.TxSearchResult, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	if req.OrderBy != "" {
		params.Set("order_by", req.OrderBy)
	}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+txsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search txs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("search txs: %w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res types.TxSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &res, nil
}

// FetchNewTxs returns the order_filled transactions of contract with height strictly
// above watermark, in the order the endpoint returned them.
func FetchNewTxs(
	ctx context.Context,
	s chainclient.TxSearcher,
	contract string,
	watermark uint64,
) ([]types.TxResponse, error) {
	res, err := s.SearchTxs(ctx, types.TxSearchRequest{
		Query:   OrderFilledQuery(contract),
		OrderBy: OrderByDesc,
	})
	if err != nil {
		return nil, err
	}
	return AboveWatermark(res.TxResponses, watermark), nil
}

// AboveWatermark keeps the transactions whose height is greater than watermark.
func AboveWatermark(txs []types.TxResponse, watermark uint64) []types.TxResponse {
	out := make([]types.TxResponse, 0, len(txs))
	for _, tx := range txs {
		if uint64(tx.Height) > watermark {
			out = append(out, tx)
		}
	}
	return out
}
