// Package recovery implements the allocation-chain locator and orphan
// scanner (spec.md §4.5, §4.10). Locating allocation pages and walking
// unallocated ranges for recoverable blocks has no teacher analogue (the
// APFS pack carries its own space-manager shape, not this one) and no
// original_source/libpff locator file was retrieved, so both the chain
// walk and the orphan-candidate heuristic are documented design
// decisions (DESIGN.md) rather than grounded translations.
package recovery

import (
	"encoding/binary"
	"io"

	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/parsers/allocation"
	"github.com/deploymenttheory/go-pff/internal/parsers/pages"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// LocateUnallocatedRanges walks page-aligned candidate offsets across the
// whole file looking for allocation and free-map pages (spec.md §4.5),
// decoding each one found into the merged unallocated-range list C10
// consumes. There is no header field naming the allocation chain's root,
// so every page-size-aligned offset past the header is tried in turn; a
// slot that doesn't validate as a plausible allocation/free-map page is
// simply skipped rather than treated as an error, since most slots land
// inside ordinary data blocks or index pages.
func LocateUnallocatedRanges(r device.ReaderAt, fileSize uint64, dialect types.Dialect) *types.RangeList {
	pageSize := uint64(dialect.PageSize())
	trailerSize := uint64(dialect.PageTrailerSize())
	width := dialect.PointerWidth()

	list := types.NewRangeList()

	for offset := roundUp(uint64(types.HeaderSize), pageSize); offset+pageSize <= fileSize; offset += pageSize {
		buf := make([]byte, pageSize)
		n, err := r.ReadAt(buf, int64(offset))
		if err != nil && err != io.EOF {
			continue
		}
		if uint64(n) < pageSize {
			continue
		}

		trailer := buf[pageSize-trailerSize:]
		if trailer[0] != trailer[1] {
			continue
		}
		kind := types.PageKind(trailer[0])
		if kind != types.PageKindDataAllocation && kind != types.PageKindPageAllocation {
			continue
		}

		backPointer := readPointerAt(trailer[4:4+uint64(width)], width)
		ref := types.PageRef{Offset: offset, BackPointer: backPointer}
		page, err := pages.ReadPage(r, ref, dialect, kind)
		if err != nil {
			continue
		}

		ranges, err := allocation.ScanAllocationPage(page, dialect)
		if err != nil {
			continue
		}
		for _, rg := range ranges {
			list.Add(rg)
		}
	}

	return list
}

func readPointerAt(b []byte, width int) uint64 {
	if width == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

func roundUp(n, increment uint64) uint64 {
	if n%increment == 0 {
		return n
	}
	return (n/increment + 1) * increment
}
