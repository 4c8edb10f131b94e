package crypto

import "github.com/deploymenttheory/go-pff/internal/types"

// tableSignatureByte3 lists the valid fourth bytes of the heap-on-node
// table signature "02 XX EC {6c|7c|8c|9c|a5|ac|bc|cc}" used to detect a
// mislabelled store (spec §4.2).
var tableSignatureByte3 = map[byte]bool{
	0x6c: true, 0x7c: true, 0x8c: true, 0x9c: true,
	0xa5: true, 0xac: true, 0xbc: true, 0xcc: true,
}

// looksLikeTableSignature reports whether plaintext begins with the
// heap-on-node table-bearing signature pattern.
func looksLikeTableSignature(plaintext []byte) bool {
	if len(plaintext) < 4 {
		return false
	}
	return plaintext[0] == 0x02 && plaintext[2] == 0xec && tableSignatureByte3[plaintext[3]]
}

// LooksLikeTableSignature is the exported form of the same probe, reused
// by internal/recovery to decide whether a candidate orphan block parses
// as a descriptor-table payload (spec.md §4.10 step 4).
func LooksLikeTableSignature(plaintext []byte) bool {
	return looksLikeTableSignature(plaintext)
}

// DecryptionPolicy decides, per store, whether a candidate block should be
// decrypted and with which kind. It is per-Store mutable state: once a
// mislabelled store triggers forced decryption, that decision is sticky
// for the remainder of the open file (spec §9 note: this bit must not be
// hoisted to a process-wide global).
type DecryptionPolicy struct {
	declared types.EncryptionType
	override *bool
	forced   bool
}

// NewDecryptionPolicy builds a policy for a store whose header declares
// declared, optionally overridden by force (nil selects automatic
// detection).
func NewDecryptionPolicy(declared types.EncryptionType, force *bool) *DecryptionPolicy {
	return &DecryptionPolicy{declared: declared, override: force}
}

// Forced reports whether this policy has promoted to forced decryption
// because a mislabelled NONE store was detected. An explicit
// Options.ForceDecryption override does not set it.
func (p *DecryptionPolicy) Forced() bool {
	return p.forced
}

// Kind returns the encryption kind that should be applied to a candidate
// (non-internal) block with the given dataID. candidateBytes are the
// as-read (still-encrypted) leading bytes of the block, used only for the
// mislabelled-store probe when the header declares EncryptionNone.
func (p *DecryptionPolicy) Kind(dataID uint64, candidateBytes []byte) types.EncryptionType {
	if p.override != nil {
		if *p.override {
			return types.EncryptionCompressible
		}
		return types.EncryptionNone
	}

	if p.forced {
		return types.EncryptionCompressible
	}

	switch p.declared {
	case types.EncryptionCompressible, types.EncryptionHigh:
		return p.declared
	case types.EncryptionNone:
		if looksLikeTableSignature(candidateBytes) {
			return types.EncryptionNone
		}
		probe := append([]byte(nil), candidateBytes...)
		decryptCompressible(dataID, probe)
		if looksLikeTableSignature(probe) {
			p.forced = true
			return types.EncryptionCompressible
		}
		return types.EncryptionNone
	default:
		return types.EncryptionNone
	}
}
