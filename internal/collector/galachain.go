package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"AllowanceLogger/internal/model"
)

const fetchAllowancesPath = "/asset/token-contract/FetchAllowances"

// ErrMalformedResponse is returned when the API answers with an unexpected shape.
var ErrMalformedResponse = errors.New("malformed allowance response")

// GalaChainFetcher implements Fetcher using the GalaChain token-contract API.
type GalaChainFetcher struct {
	BaseURL    string
	Collection string
	Client     *http.Client

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// GalaChainOptions configures a GalaChainFetcher.
type GalaChainOptions struct {
	BaseURL           string
	Collection        string
	ProxyURL          string
	RequestsPerSecond float64
	Log               *zap.Logger
}

// NewGalaChainFetcher creates a new fetcher with optional proxy support.
func NewGalaChainFetcher(opts GalaChainOptions) *GalaChainFetcher {
	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &GalaChainFetcher{
		BaseURL:    strings.TrimRight(opts.BaseURL, "/"),
		Collection: opts.Collection,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "galachain",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

func (f *GalaChainFetcher) Name() string { return "galachain" }

type fetchAllowancesRequest struct {
	GrantedTo  string `json:"grantedTo"`
	Collection string `json:"collection"`
}

// FetchAllowances posts a FetchAllowances query for wallet and parses the grants.
func (f *GalaChainFetcher) FetchAllowances(ctx context.Context, wallet string) ([]model.Grant, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	body, err := f.breaker.Execute(func() (interface{}, error) {
		return f.post(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}
	return ParseGrants(body.([]byte))
}

func (f *GalaChainFetcher) post(ctx context.Context, wallet string) ([]byte, error) {
	payload, err := json.Marshal(fetchAllowancesRequest{GrantedTo: wallet, Collection: f.Collection})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+fetchAllowancesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch allowances: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch allowances: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ParseGrants extracts the Data array of a FetchAllowances response.
// Unparseable quantities count as zero; a grant without an expires field keeps
// HasExpiry false and never counts toward the total.
func ParseGrants(body []byte) ([]model.Grant, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	data := gjson.GetBytes(body, "Data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing Data array", ErrMalformedResponse)
	}

	items := data.Array()
	grants := make([]model.Grant, 0, len(items))
	for _, item := range items {
		g := model.Grant{
			Quantity:      parseQuantity(item.Get("quantity")),
			QuantitySpent: parseQuantity(item.Get("quantitySpent")),
		}
		if exp := item.Get("expires"); exp.Type == gjson.Number {
			g.Expires = exp.Int()
			g.HasExpiry = true
		}
		grants = append(grants, g)
	}
	return grants, nil
}

func parseQuantity(v gjson.Result) decimal.Decimal {
	if !v.Exists() {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
	if err != nil {
		return decimal.Zero
	}
	return d
}
