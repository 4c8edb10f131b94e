package crypto

import (
	"testing"

	"github.com/deploymenttheory/go-pff/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecryptionPolicyDeclaredCompressible(t *testing.T) {
	p := NewDecryptionPolicy(types.EncryptionCompressible, nil)
	assert.Equal(t, types.EncryptionCompressible, p.Kind(1, nil))
	assert.False(t, p.Forced())
}

func TestDecryptionPolicyOverrideWins(t *testing.T) {
	yes := true
	p := NewDecryptionPolicy(types.EncryptionNone, &yes)
	assert.Equal(t, types.EncryptionCompressible, p.Kind(1, []byte{0, 0, 0, 0}))

	no := false
	p2 := NewDecryptionPolicy(types.EncryptionCompressible, &no)
	assert.Equal(t, types.EncryptionNone, p2.Kind(1, nil))
}

func TestDecryptionPolicyForcesOnMislabelledStore(t *testing.T) {
	dataID := uint64(0xAB)
	plaintext := []byte{0x02, 0x00, 0xec, 0x6c, 1, 2, 3, 4}
	cipher := append([]byte(nil), plaintext...)
	_, err := Decrypt(types.EncryptionCompressible, dataID, cipher)
	require.NoError(t, err)

	p := NewDecryptionPolicy(types.EncryptionNone, nil)
	kind := p.Kind(dataID, cipher)
	assert.Equal(t, types.EncryptionCompressible, kind)
	assert.True(t, p.Forced())

	// Sticky: subsequent calls keep returning Compressible even without
	// re-probing.
	assert.Equal(t, types.EncryptionCompressible, p.Kind(dataID, nil))
}

func TestDecryptionPolicyLeavesPlausiblePlaintextAlone(t *testing.T) {
	p := NewDecryptionPolicy(types.EncryptionNone, nil)
	plausible := []byte{0x02, 0x00, 0xec, 0x6c}
	assert.Equal(t, types.EncryptionNone, p.Kind(1, plausible))
	assert.False(t, p.Forced())
}
