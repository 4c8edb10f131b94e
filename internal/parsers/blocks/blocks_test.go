package blocks

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

func buildD32Block(t *testing.T, dataID uint64, payload []byte, backPointer uint32, corruptCRC bool) []byte {
	t.Helper()
	alignedSize, err := alignedBlockSize(uint32(len(payload)), types.D32)
	require.NoError(t, err)

	buf := make([]byte, alignedSize)
	copy(buf, payload)

	trailer := buf[alignedSize-12:]
	binary.LittleEndian.PutUint16(trailer[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(trailer[2:4], 0x4142)
	binary.LittleEndian.PutUint32(trailer[4:8], backPointer)

	crc := checksum.WeakCRC32(buf[:len(payload)], 0)
	if corruptCRC {
		crc ^= 0xffffffff
	}
	binary.LittleEndian.PutUint32(trailer[8:12], crc)

	return buf
}

func TestReadBlockD32RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 100)
	buf := buildD32Block(t, 42, payload, 42, false)
	r := device.NewMemoryReader(buf)

	block, err := ReadBlock(r, 42, 0, uint32(len(payload)), types.D32, types.Options{})
	require.NoError(t, err)
	assert.Equal(t, payload, block.Data)
	assert.True(t, block.Flags.Has(types.BlockValidated))
	assert.False(t, block.Flags.Has(types.BlockCRCMismatch))
}

func TestReadBlockDetectsCRCMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{0xcd}, 64)
	buf := buildD32Block(t, 7, payload, 7, true)
	r := device.NewMemoryReader(buf)

	_, err := ReadBlock(r, 7, 0, uint32(len(payload)), types.D32, types.Options{})
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.ChecksumMismatch))
}

func TestReadBlockTolerantCRCMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{0xcd}, 64)
	buf := buildD32Block(t, 7, payload, 7, true)
	r := device.NewMemoryReader(buf)

	block, err := ReadBlock(r, 7, 0, uint32(len(payload)), types.D32, types.Options{TolerateChecksumErrors: true})
	require.NoError(t, err)
	assert.True(t, block.Flags.Has(types.BlockCRCMismatch))
}

func TestReadBlockDetectsIDMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 32)
	buf := buildD32Block(t, 9, payload, 999, false)
	r := device.NewMemoryReader(buf)

	_, err := ReadBlock(r, 9, 0, uint32(len(payload)), types.D32, types.Options{})
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.IdMismatch))
}

func TestReadBlockDetectsSizeMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{0x22}, 32)
	buf := buildD32Block(t, 9, payload, 9, false)
	r := device.NewMemoryReader(buf)

	_, err := ReadBlock(r, 9, 0, uint32(len(payload))+1, types.D32, types.Options{})
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.SizeMismatch))
}

func TestAlignedBlockSizeExactMaxBoundary(t *testing.T) {
	size, err := alignedBlockSize(8192-12, types.D32)
	require.NoError(t, err)
	assert.Equal(t, uint32(8192), size)
}

func TestAlignedBlockSizeOneByteOverMaxRejected(t *testing.T) {
	_, err := alignedBlockSize(8192-11, types.D32)
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.CorruptBlock))
}

func buildD64_4KCompressedBlock(t *testing.T, dataID uint64, uncompressed []byte) []byte {
	t.Helper()
	var compressedBuf bytes.Buffer
	w, err := flate.NewWriter(&compressedBuf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(uncompressed)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	compressed := compressedBuf.Bytes()

	alignedSize, err := alignedBlockSize(uint32(len(compressed)), types.D64_4K)
	require.NoError(t, err)

	buf := make([]byte, alignedSize)
	copy(buf, compressed)

	trailer := buf[alignedSize-24:]
	binary.LittleEndian.PutUint16(trailer[0:2], uint16(len(compressed)))
	binary.LittleEndian.PutUint16(trailer[2:4], 0x4142)
	binary.LittleEndian.PutUint64(trailer[4:12], dataID)

	crc := checksum.WeakCRC32(buf[:len(compressed)], 0)
	binary.LittleEndian.PutUint32(trailer[12:16], crc)
	binary.LittleEndian.PutUint16(trailer[16:18], uint16(len(uncompressed)))

	return buf
}

func TestReadBlockD64_4KDecompresses(t *testing.T) {
	uncompressed := bytes.Repeat([]byte("hello world, this compresses well. "), 50)
	buf := buildD64_4KCompressedBlock(t, 5, uncompressed)

	trailer := buf[len(buf)-24:]
	logicalSize := binary.LittleEndian.Uint16(trailer[0:2])

	r := device.NewMemoryReader(buf)
	block, err := ReadBlock(r, 5, 0, uint32(logicalSize), types.D64_4K, types.Options{})
	require.NoError(t, err)
	assert.True(t, block.Flags.Has(types.BlockCompressed))
	assert.Equal(t, uncompressed, block.Data)
}
