package offsets

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"psp-ffi/pkg/types"
)

// ErrUnsupportedSelector is returned for calldata whose selector has no known amount offset
var ErrUnsupportedSelector = errors.New("unrecognized function selector for Augustus")

// Selector is the 4-byte function identifier at the start of calldata
type Selector [4]byte

// Hex returns the 0x-prefixed selector
func (s Selector) Hex() string {
	return hexutil.Encode(s[:])
}

// Entry describes where a router function keeps its patchable amount
type Entry struct {
	Selector Selector
	Method   string
	Offset   uint64 // 4 + slot*32
}

// Offsets of the amount-in argument, used for SELL routes.
// Entries are append-only; an existing offset never changes.
var sellTable = newTable(
	entry("0xda8567c8", "Augustus V3 multiSwap", 3),
	entry("0x58b9d179", "Augustus V4 swapOnUniswap", 0),
	entry("0x0863b7ac", "Augustus V4 swapOnUniswapFork", 2),
	entry("0x8f00eccb", "Augustus V4 multiSwap", 2),
	entry("0xec1d21dd", "Augustus V4 megaSwap", 2),
	entry("0x54840d1a", "Augustus V5 swapOnUniswap", 0),
	entry("0xf5661034", "Augustus V5 swapOnUniswapFork", 2),
	entry("0x0b86a4c1", "Augustus V5 swapOnUniswapV2Fork", 1),
	entry("0x64466805", "Augustus V5 swapOnZeroXv4", 2),
	entry("0xa94e78ef", "Augustus V5 multiSwap", 2),
	entry("0x46c67b6d", "Augustus V5 megaSwap", 2),
	entry("0xb22f4db8", "directBalancerV2GivenInSwap", 2),
	entry("0x19fc5be0", "directBalancerV2GivenOutSwap", 2),
	entry("0x3865bde6", "directCurveV1Swap", 4),
	entry("0x58f15100", "directCurveV2Swap", 2),
	entry("0xa6886da9", "directUniV3Swap", 4),
)

// Offsets of the amount-out argument, used for BUY routes
var buyTable = newTable(
	entry("0x935fb84b", "Augustus V5 buyOnUniswap", 1),
	entry("0xc03786b0", "Augustus V5 buyOnUniswapFork", 3),
	entry("0xb2f1e6db", "Augustus V5 buyOnUniswapV2Fork", 2),
	entry("0xb66bcbac", "Augustus V5 buy (old)", 5),
	entry("0x35326910", "Augustus V5 buy", 5),
	entry("0x87a63926", "directUniV3Buy", 2),
)

// OffsetForSell returns the amount-in offset for a sell-side selector
func OffsetForSell(sel Selector) (uint64, error) {
	return lookup(sellTable, sel)
}

// OffsetForBuy returns the amount-out offset for a buy-side selector
func OffsetForBuy(sel Selector) (uint64, error) {
	return lookup(buyTable, sel)
}

// SelectorOf extracts the selector from raw calldata
func SelectorOf(calldata []byte) (Selector, error) {
	var sel Selector
	if len(calldata) < len(sel) {
		return sel, errors.Wrapf(ErrUnsupportedSelector, "calldata is %d bytes long", len(calldata))
	}
	copy(sel[:], calldata)
	return sel, nil
}

// Resolve finds the patch offset for calldata built for the given side
func Resolve(side types.Side, calldata []byte) (uint64, error) {
	sel, err := SelectorOf(calldata)
	if err != nil {
		return 0, err
	}

	switch side {
	case types.SideSell:
		return OffsetForSell(sel)
	case types.SideBuy:
		return OffsetForBuy(sel)
	default:
		return 0, errors.Errorf("unknown side %q", side)
	}
}

// Entries lists the table for a side ordered by selector
func Entries(side types.Side) []Entry {
	var table map[Selector]Entry
	switch side {
	case types.SideSell:
		table = sellTable
	case types.SideBuy:
		table = buyTable
	default:
		return nil
	}

	entries := make([]Entry, 0, len(table))
	for _, e := range table {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Selector[:], entries[j].Selector[:]) < 0
	})
	return entries
}

// Find returns the entry for sel and the side whose table holds it
func Find(sel Selector) (Entry, types.Side, bool) {
	if e, ok := sellTable[sel]; ok {
		return e, types.SideSell, true
	}
	if e, ok := buyTable[sel]; ok {
		return e, types.SideBuy, true
	}
	return Entry{}, "", false
}

func lookup(table map[Selector]Entry, sel Selector) (uint64, error) {
	e, ok := table[sel]
	if !ok {
		return 0, errors.Wrap(ErrUnsupportedSelector, sel.Hex())
	}
	return e.Offset, nil
}

func entry(selector, method string, slot uint64) Entry {
	var sel Selector
	copy(sel[:], hexutil.MustDecode(selector))
	return Entry{Selector: sel, Method: method, Offset: 4 + slot*32}
}

func newTable(entries ...Entry) map[Selector]Entry {
	table := make(map[Selector]Entry, len(entries))
	for _, e := range entries {
		if _, dup := table[e.Selector]; dup {
			panic("offsets: duplicate selector " + e.Selector.Hex())
		}
		table[e.Selector] = e
	}
	return table
}
