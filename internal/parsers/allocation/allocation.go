// Package allocation decodes allocation/free-map bitmap pages into merged
// unallocated byte ranges, grounded on original_source/libpff's
// libpff_allocation_table.c (MSB-first bit walk, unit size and starting
// offset selection by page type) and on the teacher's RangeList-shaped
// free-space bookkeeping idiom.
package allocation

import (
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

const (
	dataAllocationUnitSize = 64
	pageAllocationUnitSize = 512
	pageAllocationAdjust   = 0x200
)

// ScanAllocationPage walks page's bitmap payload MSB-first, grouping
// consecutive zero bits ("free") into byte ranges. page.Kind must be
// PageKindDataAllocation or PageKindPageAllocation; a page-allocation page
// is rejected in the D64_4K dialect.
func ScanAllocationPage(page *types.Page, dialect types.Dialect) ([]types.Range, error) {
	var unitSize uint64
	var start uint64

	switch page.Kind {
	case types.PageKindDataAllocation:
		unitSize = dataAllocationUnitSize
		start = page.BackPointer
	case types.PageKindPageAllocation:
		if dialect == types.D64_4K {
			return nil, pfferr.New(pfferr.CorruptPage, "page-allocation page is not accepted in the %s dialect", dialect)
		}
		unitSize = pageAllocationUnitSize
		if page.BackPointer < pageAllocationAdjust {
			return nil, pfferr.New(pfferr.CorruptPage, "page-allocation back_pointer %d underflows -0x200 adjustment", page.BackPointer)
		}
		start = page.BackPointer - pageAllocationAdjust
	default:
		return nil, pfferr.New(pfferr.CorruptPage, "page kind 0x%02x is not an allocation page", uint8(page.Kind))
	}

	var ranges []types.Range
	var runStart uint64
	inRun := false
	unitIndex := uint64(0)

	flushRun := func(endUnitIndex uint64) {
		if !inRun {
			return
		}
		ranges = append(ranges, types.Range{
			Offset: runStart,
			Length: (endUnitIndex - (runStart-start)/unitSize) * unitSize,
		})
		inRun = false
	}

	for _, b := range page.Payload {
		for bit := 7; bit >= 0; bit-- {
			free := (b>>uint(bit))&1 == 0
			offset := start + unitIndex*unitSize
			if free {
				if !inRun {
					runStart = offset
					inRun = true
				}
			} else {
				flushRun(unitIndex)
			}
			unitIndex++
		}
	}
	flushRun(unitIndex)

	return ranges, nil
}

// ScanFreeMap is the free-map counterpart to ScanAllocationPage; the
// free map is a second, parallel bitmap with identical unit/offset
// semantics, served the same way per spec.md §4.5.
func ScanFreeMap(page *types.Page, dialect types.Dialect) ([]types.Range, error) {
	return ScanAllocationPage(page, dialect)
}
