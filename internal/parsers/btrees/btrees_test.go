package btrees

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/types"
)

const d32PageSize = 512
const d32TrailerSize = 12

// buildD32IndexPage encodes an index page's payload + trailer for the
// D32 dialect (4-byte pointers, 12-byte trailer).
func buildD32IndexPage(t *testing.T, kind types.PageKind, level uint8, backPointer uint32, entrySize uint16, entries [][]byte) []byte {
	t.Helper()
	buf := make([]byte, d32PageSize)
	payload := buf[:d32PageSize-d32TrailerSize]

	binary.LittleEndian.PutUint16(payload[0:2], entrySize)
	binary.LittleEndian.PutUint16(payload[2:4], uint16(len(entries)))
	for i, e := range entries {
		copy(payload[indexPageHeaderSize+i*int(entrySize):], e)
	}

	trailer := buf[d32PageSize-d32TrailerSize:]
	trailer[0] = byte(kind)
	trailer[1] = byte(kind)
	trailer[2] = 0xec
	trailer[3] = level
	binary.LittleEndian.PutUint32(trailer[4:8], backPointer)

	crc := checksum.WeakCRC32(payload, 0)
	binary.LittleEndian.PutUint32(trailer[8:12], crc)
	return buf
}

func branchEntryBytes(key uint64, childBackPointer, childOffset uint32) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], uint32(key))
	binary.LittleEndian.PutUint32(b[4:8], childBackPointer)
	binary.LittleEndian.PutUint32(b[8:12], childOffset)
	return b
}

func descriptorEntryBytes(descID, dataID, localID, parentID uint32) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], descID)
	binary.LittleEndian.PutUint32(b[4:8], dataID)
	binary.LittleEndian.PutUint32(b[8:12], localID)
	binary.LittleEndian.PutUint32(b[12:16], parentID)
	return b
}

// buildFixture constructs a two-level D32 descriptor index: a branch
// root at offset 0 pointing to two leaf pages at offsets 512 and 1024.
func buildFixture(t *testing.T) ([]byte, types.PageRef) {
	t.Helper()

	leaf1 := buildD32IndexPage(t, types.PageKindIndexBranchOrLeaf0, 0, 0x100, 16, [][]byte{
		descriptorEntryBytes(1, 10, 0, 0),
		descriptorEntryBytes(2, 20, 0, 0),
		descriptorEntryBytes(3, 30, 0, 0),
	})
	leaf2 := buildD32IndexPage(t, types.PageKindIndexBranchOrLeaf0, 0, 0x200, 16, [][]byte{
		descriptorEntryBytes(10, 100, 0, 0),
		descriptorEntryBytes(20, 200, 0, 0),
	})

	root := buildD32IndexPage(t, types.PageKindIndexBranchOrLeaf0, 1, 0x1, 12, [][]byte{
		branchEntryBytes(1, 0x100, d32PageSize),
		branchEntryBytes(10, 0x200, 2*d32PageSize),
	})

	buf := make([]byte, 3*d32PageSize)
	copy(buf[0:], root)
	copy(buf[d32PageSize:], leaf1)
	copy(buf[2*d32PageSize:], leaf2)

	return buf, types.PageRef{Offset: 0, BackPointer: 0x1}
}

func TestTreeLookupFindsLeafEntry(t *testing.T) {
	buf, root := buildFixture(t)
	r := device.NewMemoryReader(buf)
	tree := New[types.DescriptorEntry](r, types.D32, root, DecodeDescriptorEntry, types.Options{}, nil)

	v, ok, err := tree.Lookup(20)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(200), v.DataID)
}

func TestTreeLookupMissingKey(t *testing.T) {
	buf, root := buildFixture(t)
	r := device.NewMemoryReader(buf)
	tree := New[types.DescriptorEntry](r, types.D32, root, DecodeDescriptorEntry, types.Options{}, nil)

	_, ok, err := tree.Lookup(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTreeIterVisitsAllInAscendingOrder(t *testing.T) {
	buf, root := buildFixture(t)
	r := device.NewMemoryReader(buf)
	tree := New[types.DescriptorEntry](r, types.D32, root, DecodeDescriptorEntry, types.Options{}, nil)

	it := tree.Iter()
	var keys []uint64
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []uint64{1, 2, 3, 10, 20}, keys)
}

func TestTreeIterIsRestartable(t *testing.T) {
	buf, root := buildFixture(t)
	r := device.NewMemoryReader(buf)
	tree := New[types.DescriptorEntry](r, types.D32, root, DecodeDescriptorEntry, types.Options{}, nil)

	first := tree.Iter()
	e1, ok, err := first.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), e1.Key)

	second := tree.Iter()
	e2, ok, err := second.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), e2.Key)
}

func TestTreeLookupExceedsMaxDepthOnCycle(t *testing.T) {
	// A branch page whose single entry points back to itself (offset 0)
	// should fail with CorruptIndex once MaxIndexDepth is exceeded,
	// rather than looping forever.
	root := buildD32IndexPage(t, types.PageKindIndexBranchOrLeaf0, 1, 0x1, 12, [][]byte{
		branchEntryBytes(0, 0x1, 0),
	})
	r := device.NewMemoryReader(root)
	tree := New[types.DescriptorEntry](r, types.D32, types.PageRef{Offset: 0, BackPointer: 0x1}, DecodeDescriptorEntry, types.Options{}, nil)

	_, _, err := tree.Lookup(5)
	assert.Error(t, err)
}
