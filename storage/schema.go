package storage

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Key layout:
//
//	/verification/record/{network}/{address}/{explorer} -> VerificationRecord (JSON)
//
// Addresses are stored lowercase so lookups are case-insensitive.
const recordKeyPrefix = "/verification/record/"

// RecordKey builds the key of one contract's record on one back-end.
func RecordKey(network string, address common.Address, explorer string) []byte {
	return []byte(recordKeyPrefix + network + "/" + strings.ToLower(address.Hex()) + "/" + explorer)
}

// RecordKeyPrefix returns the prefix covering every record of a network.
func RecordKeyPrefix(network string) []byte {
	return []byte(recordKeyPrefix + network + "/")
}

// prefixUpperBound returns the smallest key greater than every key with
// the prefix.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
