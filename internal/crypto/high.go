package crypto

// decryptHigh implements the "high"/Enigma obfuscation: three independent
// permutation tables, each indexed by one lane of dataID advanced by the
// byte position (all three lanes step together, once per byte), XOR-combined
// into a per-byte keystream. XOR is its own inverse, so the same function
// serves as both encrypt and decrypt; plaintext and ciphertext are always
// the same length.
func decryptHigh(dataID uint64, buf []byte) {
	ensureTables()
	b0 := byte(dataID)
	b1 := byte(dataID >> 8)
	b2 := byte(dataID >> 16)
	for i := range buf {
		s := highT1[byte(int(b0)+i)] ^ highT2[byte(int(b1)+i)] ^ highT3[byte(int(b2)+i)]
		buf[i] ^= s
	}
}
