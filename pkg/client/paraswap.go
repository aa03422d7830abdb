package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/time/rate"

	"psp-ffi/pkg/route"
	"psp-ffi/pkg/types"
)

const (
	DefaultBaseURL       = "https://apiv5.paraswap.io"
	DefaultAPIVersion    = "5"
	DefaultTimeout       = 30 * time.Second
	DefaultRetryInterval = 500 * time.Millisecond
)

// Options configures a ParaSwapClient. Zero values take the defaults above,
// except MaxRetries where zero disables retries.
type Options struct {
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration // per attempt
	MaxRetries    uint64
	RetryInterval time.Duration
	RateLimit     float64 // requests per second, 0 means unlimited
	HTTPClient    *http.Client
}

// ParaSwapClient talks to the ParaSwap REST API.
// It serves both as the route quoter and the transaction builder.
type ParaSwapClient struct {
	baseURL       string
	version       string
	timeout       time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	limiter       *rate.Limiter
	http          *http.Client
}

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// NewParaSwapClient creates a new API client
func NewParaSwapClient(opts Options) *ParaSwapClient {
	c := &ParaSwapClient{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		version:       opts.APIVersion,
		timeout:       opts.Timeout,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		limiter:       rate.NewLimiter(rate.Inf, 0),
		http:          opts.HTTPClient,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.version == "" {
		c.version = DefaultAPIVersion
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}

	return c
}

type pricesResponse struct {
	PriceRoute json.RawMessage `json:"priceRoute"`
}

// GetRate fetches a priced route
func (c *ParaSwapClient) GetRate(ctx context.Context, req route.RateRequest) (*types.PricedRoute, error) {
	q := url.Values{}
	q.Set("srcToken", req.SrcToken.Hex())
	q.Set("srcDecimals", strconv.Itoa(int(req.SrcDecimals)))
	q.Set("destToken", req.DestToken.Hex())
	q.Set("destDecimals", strconv.Itoa(int(req.DestDecimals)))
	q.Set("amount", req.Amount)
	q.Set("side", string(req.Side))
	q.Set("network", strconv.FormatUint(req.ChainID, 10))
	q.Set("version", c.version)
	if len(req.IncludeContractMethods) > 0 {
		q.Set("includeContractMethods", strings.Join(req.IncludeContractMethods, ","))
	}

	body, err := c.do(ctx, http.MethodGet, "/prices?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrQuoteUnavailable, err), "failed to get rate")
	}

	var resp pricesResponse
	if err := sonnet.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrQuoteUnavailable, err), "failed to decode prices response")
	}
	if len(resp.PriceRoute) == 0 || string(resp.PriceRoute) == "null" {
		return nil, errors.Wrap(route.ErrQuoteUnavailable, "response has no priceRoute")
	}

	var priced types.PricedRoute
	if err := sonnet.Unmarshal(resp.PriceRoute, &priced); err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrQuoteUnavailable, err), "failed to decode priceRoute")
	}
	priced.Raw = resp.PriceRoute

	return &priced, nil
}

type transactionRequest struct {
	SrcToken     string          `json:"srcToken"`
	SrcDecimals  uint8           `json:"srcDecimals"`
	DestToken    string          `json:"destToken"`
	DestDecimals uint8           `json:"destDecimals"`
	SrcAmount    string          `json:"srcAmount"`
	DestAmount   string          `json:"destAmount"`
	PriceRoute   json.RawMessage `json:"priceRoute"`
	UserAddress  string          `json:"userAddress"`
	Partner      string          `json:"partner,omitempty"`
}

type transactionResponse struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// BuildTx requests calldata for a priced route
func (c *ParaSwapClient) BuildTx(ctx context.Context, req route.BuildRequest) (*types.BuiltTransaction, error) {
	if req.Route == nil || len(req.Route.Raw) == 0 {
		return nil, errors.Wrap(route.ErrBuildFailed, "route has no raw priceRoute")
	}

	payload, err := sonnet.Marshal(transactionRequest{
		SrcToken:     req.SrcToken.Hex(),
		SrcDecimals:  req.SrcDecimals,
		DestToken:    req.DestToken.Hex(),
		DestDecimals: req.DestDecimals,
		SrcAmount:    req.SrcAmount.String(),
		DestAmount:   req.DestAmount.String(),
		PriceRoute:   req.Route.Raw,
		UserAddress:  req.UserAddress.Hex(),
		Partner:      req.Partner,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode transaction request")
	}

	path := "/transactions/" + strconv.FormatUint(req.ChainID, 10)
	if req.IgnoreChecks {
		path += "?ignoreChecks=true"
	}

	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrBuildFailed, err), "failed to build transaction")
	}

	var resp transactionResponse
	if err := sonnet.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrBuildFailed, err), "failed to decode transaction response")
	}

	if !common.IsHexAddress(resp.To) {
		return nil, errors.Wrapf(route.ErrBuildFailed, "invalid router address %q", resp.To)
	}
	data, err := hexutil.Decode(resp.Data)
	if err != nil {
		return nil, errors.Wrap(wrapClass(route.ErrBuildFailed, err), "invalid calldata")
	}

	return &types.BuiltTransaction{
		To:   common.HexToAddress(resp.To),
		Data: data,
	}, nil
}

// do performs one API call with per-attempt timeout, rate limiting and retry of transient failures
func (c *ParaSwapClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	var body []byte
	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}

		// Check for successful status codes (200-299)
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: errorMessage(data)}
			if apiErr.Temporary() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		logger.Debug().Err(err).Str("path", path).Dur("wait", wait).Msg("Retrying API call")
	}
	if err := backoff.RetryNotify(attempt, b, notify); err != nil {
		return nil, err
	}

	return body, nil
}

// errorMessage extracts the actual error message from a response body
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return "empty response"
	}

	var errorResp map[string]interface{}
	if err := sonnet.Unmarshal(body, &errorResp); err == nil {
		if message, ok := errorResp["error"].(string); ok {
			return message
		}
		if message, ok := errorResp["message"].(string); ok {
			return message
		}
	}

	// If we can't parse it, show the raw body
	return string(body)
}

func wrapClass(class, err error) error {
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

var (
	_ route.Quoter    = (*ParaSwapClient)(nil)
	_ route.TxBuilder = (*ParaSwapClient)(nil)
)
