package route

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"psp-ffi/pkg/slippage"
)

// Record is the tuple handed to the on-chain adapter:
// (address router, bytes calldata, uint256 srcAmount, uint256 destAmount, uint256 offset).
// Without offset patching Offset is zero, the shape does not change.
type Record struct {
	Router     common.Address
	Data       []byte
	SrcAmount  *big.Int
	DestAmount *big.Int
	Offset     *big.Int
}

var recordArgs = mustRecordArguments()

func mustRecordArguments() abi.Arguments {
	tuple, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "router", Type: "address"},
		{Name: "data", Type: "bytes"},
		{Name: "srcAmount", Type: "uint256"},
		{Name: "destAmount", Type: "uint256"},
		{Name: "offset", Type: "uint256"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: tuple}}
}

// Pack ABI-encodes the record as a single tuple parameter
func (r *Record) Pack() ([]byte, error) {
	if r.SrcAmount == nil || r.DestAmount == nil || r.Offset == nil {
		return nil, errors.New("record has unset amounts")
	}
	// the packer silently reduces wider values modulo 2^256
	for name, v := range map[string]*big.Int{"srcAmount": r.SrcAmount, "destAmount": r.DestAmount, "offset": r.Offset} {
		if v.Sign() < 0 || v.BitLen() > slippage.MaxBits {
			return nil, errors.Wrapf(slippage.ErrInvalidAmount, "%s %s does not fit uint256", name, v)
		}
	}
	packed, err := recordArgs.Pack(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack record")
	}
	return packed, nil
}

// Encode returns the 0x-prefixed hex text that is written to stdout and cached
func (r *Record) Encode() ([]byte, error) {
	packed, err := r.Pack()
	if err != nil {
		return nil, err
	}
	return []byte(hexutil.Encode(packed)), nil
}

// Unpack decodes raw ABI bytes into a record
func Unpack(data []byte) (*Record, error) {
	values, err := recordArgs.Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack record")
	}
	if len(values) != 1 {
		return nil, errors.Errorf("expected one tuple, got %d values", len(values))
	}

	record, ok := abi.ConvertType(values[0], new(Record)).(*Record)
	if !ok {
		return nil, errors.New("unexpected tuple layout")
	}
	return record, nil
}

// Decode parses the hex text produced by Encode
func Decode(encoded string) (*Record, error) {
	data, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex")
	}
	return Unpack(data)
}
