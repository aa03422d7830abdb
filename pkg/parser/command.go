package parser

import (
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"psp-ffi/pkg/slippage"
	"psp-ffi/pkg/types"
)

const (
	MinArgs = 10
	MaxArgs = 12
)

// ErrInvalidInput is returned for any malformed invocation argument
var ErrInvalidInput = errors.New("invalid input")

var amountPattern = regexp.MustCompile(`^[0-9]+$`)

// Usage describes the positional arguments
const Usage = "<chainId> <srcToken> <destToken> <amount> <userAddress> <SELL|BUY> <slippagePercent> <max:true|false> <srcDecimals> <destDecimals> [blockNumber] [updateCache:true|false]"

// ParseArgs parses the positional invocation arguments
// Examples:
//   - 1 0x6B17...1d0F 0xA0b8...eB48 1000000000000000000 0x00..01 SELL 3 true 18 6
//   - 137 0x... 0x... 500000 0x... BUY 2 false 6 18 51234567 false
func ParseArgs(args []string) (*types.SwapRequest, error) {
	if len(args) < MinArgs || len(args) > MaxArgs {
		return nil, invalid("expected %d to %d arguments, got %d. Usage: %s", MinArgs, MaxArgs, len(args), Usage)
	}

	chainID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || chainID == 0 {
		return nil, invalid("chain id must be a positive integer, got %q", args[0])
	}

	srcToken, err := parseAddress("source token", args[1])
	if err != nil {
		return nil, err
	}
	destToken, err := parseAddress("destination token", args[2])
	if err != nil {
		return nil, err
	}

	amount := args[3]
	if !amountPattern.MatchString(amount) {
		return nil, invalid("amount must be an integer in the token's smallest unit, got %q", amount)
	}
	v, err := slippage.ParseAmount(amount)
	if err != nil {
		return nil, invalid("amount must fit a uint256, got %q", amount)
	}
	if v.Sign() == 0 {
		return nil, invalid("amount must be greater than 0")
	}

	user, err := parseAddress("user address", args[4])
	if err != nil {
		return nil, err
	}

	side := types.Side(args[5])
	if !side.Valid() {
		return nil, invalid("side must be SELL or BUY, got %q", args[5])
	}

	pct, err := strconv.ParseInt(args[6], 10, 64)
	if err != nil {
		return nil, invalid("slippage must be an integer percent, got %q", args[6])
	}
	if err := slippage.ValidatePercent(side, pct); err != nil {
		return nil, invalid("slippage %q: %v", args[6], err)
	}

	maxMethods, err := parseBool("max", args[7])
	if err != nil {
		return nil, err
	}

	srcDecimals, err := parseDecimals("source decimals", args[8])
	if err != nil {
		return nil, err
	}
	destDecimals, err := parseDecimals("destination decimals", args[9])
	if err != nil {
		return nil, err
	}

	req := &types.SwapRequest{
		ChainID:      chainID,
		SrcToken:     srcToken,
		DestToken:    destToken,
		Amount:       amount,
		UserAddress:  user,
		Side:         side,
		Slippage:     pct,
		Max:          maxMethods,
		SrcDecimals:  srcDecimals,
		DestDecimals: destDecimals,
		UpdateCache:  true,
		Args:         append([]string(nil), args...),
	}

	if len(args) > 10 {
		block, err := strconv.ParseUint(args[10], 10, 64)
		if err != nil {
			return nil, invalid("block number must be a non-negative integer, got %q", args[10])
		}
		req.BlockNumber = &block
	}

	// Anything but an explicit "false" keeps cache writes on
	if len(args) > 11 {
		req.UpdateCache = args[11] != "false"
	}

	return req, nil
}

func parseAddress(what, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid("%s is not a hex address: %q", what, s)
	}
	return common.HexToAddress(s), nil
}

func parseBool(what, s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, invalid("%s must be true or false, got %q", what, s)
	}
}

func parseDecimals(what, s string) (uint8, error) {
	d, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, invalid("%s must be an integer between 0 and 255, got %q", what, s)
	}
	return uint8(d), nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}
