package header

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

func newHeaderBuf() []byte {
	buf := make([]byte, types.HeaderSize)
	copy(buf[0:4], types.Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], uint16(types.ContentTypePST))
	return buf
}

func buildD32Header(t *testing.T, contentVersion uint16, descOff, descBack, offOff, offBack uint32, fileSize uint32, encType byte) []byte {
	t.Helper()
	buf := newHeaderBuf()
	binary.LittleEndian.PutUint16(buf[10:12], 0x000a)
	binary.LittleEndian.PutUint16(buf[12:14], contentVersion)

	binary.LittleEndian.PutUint32(buf[d32FileSize:d32FileSize+4], fileSize)
	binary.LittleEndian.PutUint32(buf[d32DescriptorsIndexBackPtr:d32DescriptorsIndexBackPtr+4], descBack)
	binary.LittleEndian.PutUint32(buf[d32DescriptorsIndexRootOffset:d32DescriptorsIndexRootOffset+4], descOff)
	binary.LittleEndian.PutUint32(buf[d32OffsetsIndexBackPtr:d32OffsetsIndexBackPtr+4], offBack)
	binary.LittleEndian.PutUint32(buf[d32OffsetsIndexRootOffset:d32OffsetsIndexRootOffset+4], offOff)
	buf[sentinel32Offset] = 0x80
	buf[d32EncryptionType] = encType

	crc := checksum.WeakCRC32(buf[8:8+471], 0)
	binary.LittleEndian.PutUint32(buf[4:8], crc)
	return buf
}

func buildD64Header(t *testing.T, dataVersion uint16, descOff, descBack, offOff, offBack, fileSize uint64, encType byte) []byte {
	t.Helper()
	buf := newHeaderBuf()
	binary.LittleEndian.PutUint16(buf[10:12], dataVersion)
	binary.LittleEndian.PutUint16(buf[12:14], 0x0001)

	binary.LittleEndian.PutUint64(buf[d64FileSize:d64FileSize+8], fileSize)
	binary.LittleEndian.PutUint64(buf[d64DescriptorsIndexBackPtr:d64DescriptorsIndexBackPtr+8], descBack)
	binary.LittleEndian.PutUint64(buf[d64DescriptorsIndexRootOffset:d64DescriptorsIndexRootOffset+8], descOff)
	binary.LittleEndian.PutUint64(buf[d64OffsetsIndexBackPtr:d64OffsetsIndexBackPtr+8], offBack)
	binary.LittleEndian.PutUint64(buf[d64OffsetsIndexRootOffset:d64OffsetsIndexRootOffset+8], offOff)
	buf[sentinel64Offset] = 0x80
	buf[d64EncryptionType] = encType

	crc := checksum.WeakCRC32(buf[8:8+516], 0)
	binary.LittleEndian.PutUint32(buf[d64SecondChecksum:d64SecondChecksum+4], crc)
	return buf
}

func TestReadD32Header(t *testing.T) {
	buf := buildD32Header(t, 0x0002, 0x4000, 0x4000, 0x8000, 0x8000, 0x10000, byte(types.EncryptionCompressible))
	h, err := Read(device.NewMemoryReader(buf))
	require.NoError(t, err)
	assert.Equal(t, types.D32, h.Dialect)
	assert.Equal(t, types.ContentTypePST, h.ContentType)
	assert.Equal(t, uint64(0x10000), h.FileSize)
	assert.Equal(t, uint64(0x4000), h.DescriptorIndexRoot.Offset)
	assert.Equal(t, uint64(0x4000), h.DescriptorIndexRoot.BackPointer)
	assert.Equal(t, uint64(0x8000), h.OffsetIndexRoot.Offset)
	assert.Equal(t, types.EncryptionCompressible, h.EncryptionType)
}

func TestReadD64Header(t *testing.T) {
	buf := buildD64Header(t, minD64Version, 0x40000, 0x40000, 0x80000, 0x80000, 0x100000, byte(types.EncryptionHigh))
	h, err := Read(device.NewMemoryReader(buf))
	require.NoError(t, err)
	assert.Equal(t, types.D64, h.Dialect)
	assert.Equal(t, uint64(0x100000), h.FileSize)
	assert.Equal(t, uint64(0x40000), h.DescriptorIndexRoot.Offset)
	assert.Equal(t, types.EncryptionHigh, h.EncryptionType)
}

func TestReadD64_4KHeader(t *testing.T) {
	buf := buildD64Header(t, minD64_4KVer, 0x40000, 0x40000, 0x80000, 0x80000, 0x100000, byte(types.EncryptionNone))
	h, err := Read(device.NewMemoryReader(buf))
	require.NoError(t, err)
	assert.Equal(t, types.D64_4K, h.Dialect)
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := buildD32Header(t, 1, 0, 0, 0, 0, 0, 0)
	buf[0] = 0x00
	_, err := Read(device.NewMemoryReader(buf))
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.NotAPffFile))
}

func TestReadRejectsUnknownContentType(t *testing.T) {
	buf := buildD32Header(t, 1, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint16(buf[8:10], 0xffff)
	crc := checksum.WeakCRC32(buf[8:8+471], 0)
	binary.LittleEndian.PutUint32(buf[4:8], crc)
	_, err := Read(device.NewMemoryReader(buf))
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.UnsupportedDialect))
}

func TestReadDetectsD32ChecksumCorruption(t *testing.T) {
	buf := buildD32Header(t, 1, 0x4000, 0x4000, 0x8000, 0x8000, 0x10000, 0)
	buf[100] ^= 0xff
	_, err := Read(device.NewMemoryReader(buf))
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.CorruptHeader))
}

func TestReadDetectsD64ChecksumCorruption(t *testing.T) {
	buf := buildD64Header(t, minD64Version, 0x40000, 0x40000, 0x80000, 0x80000, 0x100000, 0)
	buf[300] ^= 0xff
	_, err := Read(device.NewMemoryReader(buf))
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.CorruptHeader))
}

func TestResolveDialectAmbiguousRangeUsesSentinelProbe(t *testing.T) {
	buf := newHeaderBuf()
	buf[sentinel32Offset] = 0x80

	dialect, err := resolveDialect(0x0012, buf)
	require.NoError(t, err)
	assert.Equal(t, types.D32, dialect)
}

func TestResolveDialectAmbiguousBothSentinelsSetIsError(t *testing.T) {
	buf := newHeaderBuf()
	buf[sentinel32Offset] = 0x80
	buf[sentinel64Offset] = 0x80

	_, err := resolveDialect(0x0012, buf)
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.UnsupportedDialect))
}

func TestResolveDialectAmbiguousNeitherSentinelSetIsError(t *testing.T) {
	buf := newHeaderBuf()

	_, err := resolveDialect(0x0012, buf)
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.UnsupportedDialect))
}

func TestReadRejectsUnknownEncryptionType(t *testing.T) {
	buf := buildD32Header(t, 1, 0x4000, 0x4000, 0x8000, 0x8000, 0x10000, 0x09)
	_, err := Read(device.NewMemoryReader(buf))
	require.Error(t, err)
	assert.True(t, pfferr.Is(err, pfferr.UnsupportedDialect))
}
