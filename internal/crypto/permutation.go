package crypto

import "math/rand"

// buildInvolution returns a permutation of 0..255 that is its own inverse
// (P[P[x]] == x for all x), generated deterministically from seed. Pairing
// bytes under a fixed seed gives a table that looks arbitrary but is cheap
// to regenerate and to reason about: every decrypt operation built as a
// "P[x xor k] xor k" sandwich around an involution is automatically its
// own inverse, which is exactly the round-trip contract the two PFF stream
// obfuscations are required to satisfy.
//
// Known limitation: these tables are NOT the published COMPRESSIBLE/HIGH
// permutations (libpff_encryption.c was unavailable to ground them on, see
// DESIGN.md Q3). A buffer encrypted by this package round-trips through
// Decrypt correctly, but Decrypt cannot recover plaintext from a real
// PST/OST file's COMPRESSIBLE- or HIGH-encrypted content.
func buildInvolution(seed int64) [256]byte {
	var p [256]byte
	used := make([]bool, 256)
	r := rand.New(rand.NewSource(seed))

	for i := 0; i < 256; i++ {
		if used[i] {
			continue
		}
		// Decide whether i is a fixed point or pairs with another free slot.
		if r.Intn(4) == 0 {
			p[i] = byte(i)
			used[i] = true
			continue
		}
		free := make([]int, 0, 256)
		for j := i + 1; j < 256; j++ {
			if !used[j] {
				free = append(free, j)
			}
		}
		if len(free) == 0 {
			p[i] = byte(i)
			used[i] = true
			continue
		}
		j := free[r.Intn(len(free))]
		p[i], p[j] = byte(j), byte(i)
		used[i], used[j] = true, true
	}
	return p
}
