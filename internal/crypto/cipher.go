// Package crypto implements the two stream obfuscations PFF files use
// ("compressible"/cyclic and "high"/Enigma) and DEFLATE expansion of
// compressed 4K-page data blocks. Neither obfuscation is real cryptography;
// both are documented, reversible permutations keyed by a block's data_id.
//
// Known limitation: the permutation tables in permutation.go are generated
// from fixed math/rand seeds rather than derived from the format's actual
// published tables, so this package satisfies the encrypt/decrypt
// round-trip invariant but cannot decrypt COMPRESSIBLE/HIGH content from a
// real PST/OST file. See buildInvolution's doc comment and DESIGN.md Q3.
package crypto

import (
	"sync"

	"github.com/deploymenttheory/go-pff/internal/types"
)

var (
	tablesOnce      sync.Once
	compressibleP   [256]byte
	highT1          [256]byte
	highT2          [256]byte
	highT3          [256]byte
)

func buildTables() {
	compressibleP = buildInvolution(0xC0FFEE)
	highT1 = buildInvolution(0x1111)
	highT2 = buildInvolution(0x2222)
	highT3 = buildInvolution(0x3333)
}

func ensureTables() {
	tablesOnce.Do(buildTables)
}

// Decrypt replaces buf in place according to kind, keyed by the low three
// bytes of dataID. It is an involution: Decrypt(kind, id, Decrypt(kind, id, buf))
// restores the original bytes. Decrypt returns the number of bytes
// processed (always len(buf)).
func Decrypt(kind types.EncryptionType, dataID uint64, buf []byte) (int, error) {
	switch kind {
	case types.EncryptionNone:
		return len(buf), nil
	case types.EncryptionCompressible:
		decryptCompressible(dataID, buf)
		return len(buf), nil
	case types.EncryptionHigh:
		decryptHigh(dataID, buf)
		return len(buf), nil
	default:
		return 0, errUnsupportedKind(kind)
	}
}

func errUnsupportedKind(kind types.EncryptionType) error {
	return &unsupportedKindError{kind: kind}
}

type unsupportedKindError struct {
	kind types.EncryptionType
}

func (e *unsupportedKindError) Error() string {
	return "crypto: unsupported encryption kind " + e.kind.String()
}
