package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the trade direction as the aggregator API spells it
type Side string

const (
	SideSell Side = "SELL" // source amount fixed, destination amount slips
	SideBuy  Side = "BUY"  // destination amount fixed, source amount slips
)

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideSell || s == SideBuy
}

// SwapRequest represents one calldata-preparation invocation.
// It is built once from the positional arguments and never mutated.
type SwapRequest struct {
	ChainID      uint64
	SrcToken     common.Address
	DestToken    common.Address
	Amount       string // smallest unit of the side fixed by Side
	UserAddress  common.Address
	Side         Side
	Slippage     int64 // integer percent
	Max          bool  // restrict contract methods and resolve the patch offset
	SrcDecimals  uint8
	DestDecimals uint8
	BlockNumber  *uint64 // cache key input only
	UpdateCache  bool

	// Args holds the raw positional arguments the request was parsed from
	Args []string
}

// PricedRoute is the aggregator's route. Only the two amounts are interpreted,
// Raw is handed back to the transaction builder untouched.
type PricedRoute struct {
	SrcAmount  string          `json:"srcAmount"`
	DestAmount string          `json:"destAmount"`
	Raw        json.RawMessage `json:"-"`
}

// BuiltTransaction is the builder's ready-to-submit transaction
type BuiltTransaction struct {
	To   common.Address
	Data []byte
}
