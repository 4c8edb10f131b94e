// Package pages reads and validates fixed-size index/allocation pages,
// grounded on the teacher's internal/parsers/space_manager block readers
// (fixed-size struct parse with a running offset, then field validation
// against an expected object type) and on spec.md §4.4's 5-step
// read_page algorithm.
package pages

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// ReadPage reads and validates the page at ref.Offset, implementing
// spec.md §4.4's 5-step algorithm. expectedKinds restricts the accepted
// trailer type byte; an empty expectedKinds accepts any type byte.
func ReadPage(r device.ReaderAt, ref types.PageRef, dialect types.Dialect, expectedKinds ...types.PageKind) (*types.Page, error) {
	pageSize := dialect.PageSize()
	trailerSize := dialect.PageTrailerSize()

	buf := make([]byte, pageSize)
	if _, err := r.ReadAt(buf, int64(ref.Offset)); err != nil {
		return nil, pfferr.Wrap(pfferr.Io, err, "reading %d-byte page at offset %d", pageSize, ref.Offset)
	}

	payload := buf[:pageSize-trailerSize]
	trailer := buf[pageSize-trailerSize:]

	kind := types.PageKind(trailer[0])
	typeCopy := types.PageKind(trailer[1])
	if kind != typeCopy {
		return nil, pfferr.New(pfferr.CorruptPage, "page at offset %d: type 0x%02x != type_copy 0x%02x", ref.Offset, kind, typeCopy)
	}
	level := trailer[3]

	pointerWidth := dialect.PointerWidth()
	backPointer := readPointer(trailer[4:], pointerWidth)
	checksumOffset := 4 + pointerWidth
	storedChecksum := binary.LittleEndian.Uint32(trailer[checksumOffset : checksumOffset+4])

	computed := checksum.WeakCRC32(payload, 0)
	if storedChecksum != computed {
		return nil, pfferr.New(pfferr.CorruptPage, "page at offset %d: CRC mismatch stored=0x%08x computed=0x%08x", ref.Offset, storedChecksum, computed)
	}

	if backPointer != ref.BackPointer {
		return nil, pfferr.New(pfferr.CorruptPage, "page at offset %d: back_pointer %d != expected %d", ref.Offset, backPointer, ref.BackPointer)
	}

	if len(expectedKinds) > 0 {
		ok := false
		for _, k := range expectedKinds {
			if k == kind {
				ok = true
				break
			}
		}
		if !ok {
			return nil, pfferr.New(pfferr.CorruptPage, "page at offset %d: unexpected kind 0x%02x", ref.Offset, kind)
		}
	}

	return &types.Page{
		Kind:        kind,
		Level:       level,
		BackPointer: backPointer,
		Payload:     payload,
	}, nil
}

func readPointer(b []byte, width int) uint64 {
	if width == 4 {
		return uint64(binary.LittleEndian.Uint32(b[:4]))
	}
	return binary.LittleEndian.Uint64(b[:8])
}
