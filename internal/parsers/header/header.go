// Package header parses the 564-byte PFF file header and determines the
// file's dialect, grounded on the teacher's
// internal/parsers/container/container_superblock_reader.go (magic check,
// then a field-by-field little-endian decode with typed failures) and, for
// exact field offsets, on original_source/libpff/pff_file_header.h and
// libpff_file_header.c.
package header

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// dataVersion thresholds from spec §4.3 / original_source.
const (
	maxD32Version = 0x000f
	minD64Version = 0x0015
	minD64_4KVer  = 0x0024
)

// Sentinel-byte probe offsets used to disambiguate a data_version value
// that falls between maxD32Version and minD64Version (0x0010..0x0014):
// the 32-bit and 64-bit body layouts place their "sentinel" byte (expected
// value 0x80) at different absolute offsets; exactly one of the two
// layouts will show 0x80 there for a well-formed file.
const (
	sentinel32Offset = 460
	sentinel64Offset = 512
)

// Absolute byte offsets of the 32-bit dialect's body fields (relative to
// the start of the 564-byte header).
const (
	d32FileSize                   = 168
	d32DescriptorsIndexBackPtr    = 184
	d32DescriptorsIndexRootOffset = 188
	d32OffsetsIndexBackPtr        = 192
	d32OffsetsIndexRootOffset     = 196
	d32EncryptionType             = 461
)

// Absolute byte offsets of the 64-bit (and 64-bit-4K-page) dialects' body
// fields.
const (
	d64FileSize                   = 184
	d64DescriptorsIndexBackPtr    = 216
	d64DescriptorsIndexRootOffset = 224
	d64OffsetsIndexBackPtr        = 232
	d64OffsetsIndexRootOffset     = 240
	d64EncryptionType             = 513
	d64SecondChecksum             = 524
)

// Read reads and validates the 564-byte header at offset 0 of r.
func Read(r device.ReaderAt) (*types.Header, error) {
	buf := make([]byte, types.HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, pfferr.Wrap(pfferr.Io, err, "reading %d-byte header", types.HeaderSize)
	}

	if [4]byte{buf[0], buf[1], buf[2], buf[3]} != types.Magic {
		return nil, pfferr.New(pfferr.NotAPffFile, "signature mismatch: got % x", buf[0:4])
	}

	contentType := types.ContentType(binary.LittleEndian.Uint16(buf[8:10]))
	switch contentType {
	case types.ContentTypePAB, types.ContentTypePST, types.ContentTypeOST:
	default:
		return nil, pfferr.New(pfferr.UnsupportedDialect, "unknown content type 0x%04x", uint16(contentType))
	}

	dataVersion := binary.LittleEndian.Uint16(buf[10:12])
	contentVersion := binary.LittleEndian.Uint16(buf[12:14])

	dialect, err := resolveDialect(dataVersion, buf)
	if err != nil {
		return nil, err
	}

	if err := verifyChecksum(dialect, buf); err != nil {
		return nil, err
	}

	h := &types.Header{
		ContentType:    contentType,
		DataVersion:    dataVersion,
		ContentVersion: contentVersion,
		Dialect:        dialect,
	}

	if err := parseBody(h, dialect, buf); err != nil {
		return nil, err
	}

	return h, nil
}

// resolveDialect implements spec §4.3's dialect decision table, including
// the sentinel-byte probe for data_version values in 0x0010..0x0014.
func resolveDialect(dataVersion uint16, buf []byte) (types.Dialect, error) {
	switch {
	case dataVersion <= maxD32Version:
		return types.D32, nil
	case dataVersion >= minD64_4KVer:
		return types.D64_4K, nil
	case dataVersion >= minD64Version:
		return types.D64, nil
	default:
		s32 := buf[sentinel32Offset]
		s64 := buf[sentinel64Offset]
		switch {
		case s32 == 0x80 && s64 != 0x80:
			return types.D32, nil
		case s64 == 0x80 && s32 != 0x80:
			return types.D64, nil
		default:
			return 0, pfferr.New(pfferr.UnsupportedDialect, "ambiguous data_version 0x%04x: sentinel probe inconclusive", dataVersion)
		}
	}
}

// verifyChecksum validates the header's weak CRC-32. D32 checks the
// common field at bytes[4:8] over bytes[8:479]; D64/D64_4K check a second
// checksum field embedded in the dialect body over bytes[8:524] (the
// field at bytes[4:8] is not meaningful for these dialects).
func verifyChecksum(dialect types.Dialect, buf []byte) error {
	if dialect == types.D32 {
		stored := binary.LittleEndian.Uint32(buf[4:8])
		computed := checksum.WeakCRC32(buf[8:8+471], 0)
		if stored != computed {
			return pfferr.New(pfferr.CorruptHeader, "header CRC (bytes 8..479) mismatch: stored=0x%08x computed=0x%08x", stored, computed)
		}
		return nil
	}

	stored := binary.LittleEndian.Uint32(buf[d64SecondChecksum : d64SecondChecksum+4])
	computed := checksum.WeakCRC32(buf[8:8+516], 0)
	if stored != computed {
		return pfferr.New(pfferr.CorruptHeader, "header CRC (bytes 8..524) mismatch: stored=0x%08x computed=0x%08x", stored, computed)
	}
	return nil
}

// parseBody reads the two root PageRefs, declared file size, and
// encryption type from the dialect-specific header body.
func parseBody(h *types.Header, dialect types.Dialect, buf []byte) error {
	var (
		fileSize          uint64
		descBackPtr       uint64
		descOffset        uint64
		offBackPtr        uint64
		offOffset         uint64
		encryptionTypeRaw byte
	)

	if dialect == types.D32 {
		fileSize = uint64(binary.LittleEndian.Uint32(buf[d32FileSize : d32FileSize+4]))
		descBackPtr = uint64(binary.LittleEndian.Uint32(buf[d32DescriptorsIndexBackPtr : d32DescriptorsIndexBackPtr+4]))
		descOffset = uint64(binary.LittleEndian.Uint32(buf[d32DescriptorsIndexRootOffset : d32DescriptorsIndexRootOffset+4]))
		offBackPtr = uint64(binary.LittleEndian.Uint32(buf[d32OffsetsIndexBackPtr : d32OffsetsIndexBackPtr+4]))
		offOffset = uint64(binary.LittleEndian.Uint32(buf[d32OffsetsIndexRootOffset : d32OffsetsIndexRootOffset+4]))
		encryptionTypeRaw = buf[d32EncryptionType]
	} else {
		fileSize = binary.LittleEndian.Uint64(buf[d64FileSize : d64FileSize+8])
		descBackPtr = binary.LittleEndian.Uint64(buf[d64DescriptorsIndexBackPtr : d64DescriptorsIndexBackPtr+8])
		descOffset = binary.LittleEndian.Uint64(buf[d64DescriptorsIndexRootOffset : d64DescriptorsIndexRootOffset+8])
		offBackPtr = binary.LittleEndian.Uint64(buf[d64OffsetsIndexBackPtr : d64OffsetsIndexBackPtr+8])
		offOffset = binary.LittleEndian.Uint64(buf[d64OffsetsIndexRootOffset : d64OffsetsIndexRootOffset+8])
		encryptionTypeRaw = buf[d64EncryptionType]
	}

	const maxValidOffset = uint64(1) << 63
	if descOffset > maxValidOffset || offOffset > maxValidOffset {
		return pfferr.New(pfferr.CorruptHeader, "root page offset exceeds 2^63")
	}

	encType := types.EncryptionType(encryptionTypeRaw)
	switch encType {
	case types.EncryptionNone, types.EncryptionCompressible, types.EncryptionHigh:
	default:
		return pfferr.New(pfferr.UnsupportedDialect, "unknown encryption type 0x%02x", encryptionTypeRaw)
	}

	h.DescriptorIndexRoot = types.PageRef{Offset: descOffset, BackPointer: descBackPtr}
	h.OffsetIndexRoot = types.PageRef{Offset: offOffset, BackPointer: offBackPtr}
	h.FileSize = fileSize
	h.EncryptionType = encType
	return nil
}
