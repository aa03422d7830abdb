package route

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"psp-ffi/pkg/cache"
	"psp-ffi/pkg/offsets"
	"psp-ffi/pkg/slippage"
	"psp-ffi/pkg/types"
)

// DefaultPartner is reported to the aggregator when building transactions
const DefaultPartner = "aave"

var (
	// ErrQuoteUnavailable is returned when no priced route could be obtained
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrBuildFailed is returned when the route could not be turned into calldata
	ErrBuildFailed = errors.New("transaction build failed")
)

// Contract methods whose calldata layout is in the offset tables
var (
	sellMethods = []string{"multiSwap", "megaSwap"}
	buyMethods  = []string{"buy"}
)

// RateRequest asks the aggregator for a priced route
type RateRequest struct {
	ChainID      uint64
	SrcToken     common.Address
	SrcDecimals  uint8
	DestToken    common.Address
	DestDecimals uint8
	Amount       string
	Side         types.Side

	// IncludeContractMethods restricts the execution strategies the aggregator may pick. Empty means any.
	IncludeContractMethods []string
}

// BuildRequest asks the aggregator for calldata executing route
type BuildRequest struct {
	ChainID      uint64
	SrcToken     common.Address
	SrcDecimals  uint8
	DestToken    common.Address
	DestDecimals uint8
	SrcAmount    *big.Int
	DestAmount   *big.Int
	Route        *types.PricedRoute
	UserAddress  common.Address
	Partner      string

	// IgnoreChecks skips the builder's own balance and amount validation
	IgnoreChecks bool
}

// Quoter returns priced routes
type Quoter interface {
	GetRate(ctx context.Context, req RateRequest) (*types.PricedRoute, error)
}

// TxBuilder turns priced routes into transactions
type TxBuilder interface {
	BuildTx(ctx context.Context, req BuildRequest) (*types.BuiltTransaction, error)
}

// Result is everything computed for one cache miss
type Result struct {
	Route  *types.PricedRoute
	Tx     *types.BuiltTransaction
	Record *Record
}

// Orchestrator prepares swap records: cache, quote, adjust, build, resolve offset, encode
type Orchestrator struct {
	quoter  Quoter
	builder TxBuilder
	cache   *cache.Cache
	partner string
}

// NewOrchestrator creates an orchestrator. A nil cache disables caching entirely.
func NewOrchestrator(quoter Quoter, builder TxBuilder, c *cache.Cache, partner string) *Orchestrator {
	if partner == "" {
		partner = DefaultPartner
	}
	return &Orchestrator{
		quoter:  quoter,
		builder: builder,
		cache:   c,
		partner: partner,
	}
}

// Prepare returns the encoded record for req. On a cache hit no collaborator is called.
func (o *Orchestrator) Prepare(ctx context.Context, req *types.SwapRequest) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	compute := func(ctx context.Context) ([]byte, error) {
		res, err := o.Build(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.Record.Encode()
	}

	if o.cache == nil {
		return compute(ctx)
	}

	key := cache.Key(req.Args)
	encoded, hit, err := o.cache.Do(ctx, key, req.UpdateCache, compute)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("key", key).Bool("hit", hit).Msg("Cache consulted")
	return encoded, nil
}

// Build runs the uncached pipeline for req
func (o *Orchestrator) Build(ctx context.Context, req *types.SwapRequest) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	rateReq := RateRequest{
		ChainID:      req.ChainID,
		SrcToken:     req.SrcToken,
		SrcDecimals:  req.SrcDecimals,
		DestToken:    req.DestToken,
		DestDecimals: req.DestDecimals,
		Amount:       req.Amount,
		Side:         req.Side,
	}
	if req.Max {
		rateReq.IncludeContractMethods = PreferredMethods(req.Side)
	}

	priceRoute, err := o.quoter.GetRate(ctx, rateReq)
	if err != nil {
		return nil, classify(ErrQuoteUnavailable, err)
	}
	if priceRoute == nil {
		return nil, errors.Wrap(ErrQuoteUnavailable, "empty route")
	}
	logger.Debug().
		Str("src_amount", priceRoute.SrcAmount).
		Str("dest_amount", priceRoute.DestAmount).
		Msg("Route priced")

	srcAmount, destAmount, err := slippage.Adjust(priceRoute, req.Side, req.Slippage)
	if err != nil {
		if errors.Is(err, slippage.ErrInvalidAmount) {
			return nil, classify(ErrQuoteUnavailable, err)
		}
		return nil, err
	}

	tx, err := o.builder.BuildTx(ctx, BuildRequest{
		ChainID:      req.ChainID,
		SrcToken:     req.SrcToken,
		SrcDecimals:  req.SrcDecimals,
		DestToken:    req.DestToken,
		DestDecimals: req.DestDecimals,
		SrcAmount:    srcAmount,
		DestAmount:   destAmount,
		Route:        priceRoute,
		UserAddress:  req.UserAddress,
		Partner:      o.partner,
		IgnoreChecks: true,
	})
	if err != nil {
		return nil, classify(ErrBuildFailed, err)
	}
	if tx == nil {
		return nil, errors.Wrap(ErrBuildFailed, "empty transaction")
	}

	offset := new(big.Int)
	if req.Max {
		off, err := offsets.Resolve(req.Side, tx.Data)
		if err != nil {
			return nil, err
		}
		offset.SetUint64(off)
	}
	logger.Debug().
		Str("router", tx.To.Hex()).
		Str("offset", offset.String()).
		Msg("Transaction built")

	return &Result{
		Route: priceRoute,
		Tx:    tx,
		Record: &Record{
			Router:     tx.To,
			Data:       tx.Data,
			SrcAmount:  srcAmount,
			DestAmount: destAmount,
			Offset:     offset,
		},
	}, nil
}

// PreferredMethods returns the contract methods whose amount offset is known for side
func PreferredMethods(side types.Side) []string {
	switch side {
	case types.SideSell:
		return append([]string(nil), sellMethods...)
	case types.SideBuy:
		return append([]string(nil), buyMethods...)
	default:
		return nil
	}
}

// classify makes err match class without losing its own chain
func classify(class, err error) error {
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
