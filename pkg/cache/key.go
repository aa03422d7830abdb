package cache

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// KeyLength is the length of a hex encoded key
const KeyLength = 64

// Key digests the complete, ordered argument list of an invocation.
// Every argument participates, including ones that do not affect pricing,
// and each one is length-prefixed so that ["ab", "c"] and ["a", "bc"] differ.
func Key(args []string) string {
	h := sha3.New256()

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(args)))
	h.Write(lenBuf[:])

	for _, arg := range args {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(arg)))
		h.Write(lenBuf[:])
		h.Write([]byte(arg))
	}

	return common.Bytes2Hex(h.Sum(nil))
}

// ValidKey reports whether key has the shape produced by Key
func ValidKey(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for _, c := range key {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
