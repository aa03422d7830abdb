package client_test

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-ffi/pkg/client"
	"psp-ffi/pkg/route"
	"psp-ffi/pkg/types"
)

var (
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	user = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

const priceRoute = `{"blockNumber":19000000,"network":1,"srcAmount":"1000","destAmount":"2000","contractMethod":"multiSwap","bestRoute":[]}`

func newClient(t *testing.T, handler http.HandlerFunc) *client.ParaSwapClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return client.NewParaSwapClient(client.Options{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	})
}

func TestGetRate(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/prices", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, dai.Hex(), q.Get("srcToken"))
		assert.Equal(t, "18", q.Get("srcDecimals"))
		assert.Equal(t, usdc.Hex(), q.Get("destToken"))
		assert.Equal(t, "6", q.Get("destDecimals"))
		assert.Equal(t, "1000", q.Get("amount"))
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "1", q.Get("network"))
		assert.Equal(t, "5", q.Get("version"))
		assert.Equal(t, "multiSwap,megaSwap", q.Get("includeContractMethods"))

		_, _ = io.WriteString(w, `{"priceRoute":`+priceRoute+`}`)
	})

	priced, err := c.GetRate(context.Background(), route.RateRequest{
		ChainID:                1,
		SrcToken:               dai,
		SrcDecimals:            18,
		DestToken:              usdc,
		DestDecimals:           6,
		Amount:                 "1000",
		Side:                   types.SideSell,
		IncludeContractMethods: []string{"multiSwap", "megaSwap"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", priced.SrcAmount)
	assert.Equal(t, "2000", priced.DestAmount)
	assert.JSONEq(t, priceRoute, string(priced.Raw))
}

func TestGetRateOmitsEmptyMethods(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["includeContractMethods"]
		assert.False(t, present)
		_, _ = io.WriteString(w, `{"priceRoute":`+priceRoute+`}`)
	})

	_, err := c.GetRate(context.Background(), route.RateRequest{
		ChainID: 1, SrcToken: dai, DestToken: usdc, Amount: "1", Side: types.SideBuy,
	})
	require.NoError(t, err)
}

func TestGetRateAPIError(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"No routes found with enough liquidity"}`)
	})

	_, err := c.GetRate(context.Background(), route.RateRequest{ChainID: 1, Amount: "1", Side: types.SideSell})
	require.ErrorIs(t, err, route.ErrQuoteUnavailable)
	assert.Contains(t, err.Error(), "No routes found with enough liquidity")
	assert.Contains(t, err.Error(), "status 400")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	// client errors are not retried
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRateMissingRoute(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := c.GetRate(context.Background(), route.RateRequest{ChainID: 1, Amount: "1", Side: types.SideSell})
	assert.ErrorIs(t, err, route.ErrQuoteUnavailable)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"priceRoute":`+priceRoute+`}`)
	})

	_, err := c.GetRate(context.Background(), route.RateRequest{ChainID: 1, Amount: "1", Side: types.SideSell})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetRate(context.Background(), route.RateRequest{ChainID: 1, Amount: "1", Side: types.SideSell})
	require.ErrorIs(t, err, route.ErrQuoteUnavailable)
	assert.Contains(t, err.Error(), "empty response")
	// initial attempt plus MaxRetries
	assert.Equal(t, int32(3), calls.Load())
}

func buildRequest() route.BuildRequest {
	return route.BuildRequest{
		ChainID:      1,
		SrcToken:     dai,
		SrcDecimals:  18,
		DestToken:    usdc,
		DestDecimals: 6,
		SrcAmount:    big.NewInt(1000),
		DestAmount:   big.NewInt(1940),
		Route:        &types.PricedRoute{SrcAmount: "1000", DestAmount: "2000", Raw: json.RawMessage(priceRoute)},
		UserAddress:  user,
		Partner:      route.DefaultPartner,
		IgnoreChecks: true,
	}
}

func TestBuildTx(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions/1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("ignoreChecks"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, dai.Hex(), body["srcToken"])
		assert.Equal(t, float64(18), body["srcDecimals"])
		assert.Equal(t, usdc.Hex(), body["destToken"])
		assert.Equal(t, float64(6), body["destDecimals"])
		assert.Equal(t, "1000", body["srcAmount"])
		assert.Equal(t, "1940", body["destAmount"])
		assert.Equal(t, user.Hex(), body["userAddress"])
		assert.Equal(t, "aave", body["partner"])

		pr, ok := body["priceRoute"].(map[string]interface{})
		if assert.True(t, ok) {
			assert.Equal(t, "multiSwap", pr["contractMethod"])
		}

		_, _ = io.WriteString(w, `{"from":"0x000000000000000000000000000000000000dEaD","to":"0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57","value":"0","data":"0xa94e78ef00ff","chainId":1}`)
	})

	tx, err := c.BuildTx(context.Background(), buildRequest())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57"), tx.To)
	assert.Equal(t, []byte{0xa9, 0x4e, 0x78, 0xef, 0x00, 0xff}, tx.Data)
}

func TestBuildTxWithoutIgnoreChecks(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = io.WriteString(w, `{"to":"0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57","data":"0x00"}`)
	})

	req := buildRequest()
	req.IgnoreChecks = false
	_, err := c.BuildTx(context.Background(), req)
	require.NoError(t, err)
}

func TestBuildTxFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"api error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Unable to check price impact"}`)
		},
		"bad router": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"to":"router","data":"0x00"}`)
		},
		"bad data": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"to":"0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57","data":"zz"}`)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, handler)
			_, err := c.BuildTx(context.Background(), buildRequest())
			assert.ErrorIs(t, err, route.ErrBuildFailed)
		})
	}
}

func TestBuildTxRequiresRawRoute(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	req := buildRequest()
	req.Route = &types.PricedRoute{SrcAmount: "1", DestAmount: "1"}
	_, err := c.BuildTx(context.Background(), req)
	assert.ErrorIs(t, err, route.ErrBuildFailed)
}

func TestContextCancelled(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetRate(ctx, route.RateRequest{ChainID: 1, Amount: "1", Side: types.SideSell})
	assert.ErrorIs(t, err, route.ErrQuoteUnavailable)
}

func TestRateLimitSpacesRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"priceRoute":`+priceRoute+`}`)
	}))
	t.Cleanup(srv.Close)

	c := client.NewParaSwapClient(client.Options{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RateLimit: 20,
	})

	req := route.RateRequest{ChainID: 1, Amount: "1000", Side: types.SideSell}
	start := time.Now()
	for range 3 {
		_, err := c.GetRate(context.Background(), req)
		require.NoError(t, err)
	}

	// burst of one, then a token every 50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	// a wait past the deadline fails without reaching the server
	slow := client.NewParaSwapClient(client.Options{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RateLimit: 0.5,
	})
	_, err := slow.GetRate(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = slow.GetRate(ctx, req)
	assert.ErrorIs(t, err, route.ErrQuoteUnavailable)
	assert.Equal(t, int32(4), calls.Load())
}
