package recovery

import (
	"encoding/binary"
	"sort"

	"github.com/deploymenttheory/go-pff/internal/checksum"
	"github.com/deploymenttheory/go-pff/internal/crypto"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// AllocatedDataIDChecker reports whether dataID already appears in the
// live offset index, implemented by the caller (internal/resolve) so
// this package never depends on internal/parsers/btrees directly.
type AllocatedDataIDChecker func(dataID uint64) bool

// TableProbe decides whether a candidate orphan block's bytes parse as a
// descriptor-table payload, standing in for spec.md §4.10 step 4's
// "external MAPI layer's probe" — this core never parses MAPI property
// tables itself. A nil probe defaults to crypto.LooksLikeTableSignature,
// the same heap-on-node signature check used to detect mislabelled
// stores (spec §4.2): both questions are really "does this plausibly
// start a table".
type TableProbe func(data []byte) bool

// ScanOrphans implements spec.md §4.10: walk unallocated in
// dialect.BlockAlignment()-sized strides, treating each aligned offset
// as a hypothesized block-trailer position (payload immediately before
// the trailer, assuming no alignment slack — a block padded beyond its logical size
// is missed by this heuristic, a documented, conservative limitation of
// an advisory feature). A candidate is accepted when its logical_size is
// plausible, the CRC over the payload bytes immediately preceding it
// matches, and its back-pointer data_id is not already live in the
// offset index.
func ScanOrphans(r device.ReaderAt, unallocated *types.RangeList, dialect types.Dialect, allocated AllocatedDataIDChecker, probe TableProbe) []types.OrphanEntry {
	if probe == nil {
		probe = crypto.LooksLikeTableSignature
	}

	trailerSize := uint64(dialect.BlockTrailerSize())
	stride := uint64(dialect.BlockAlignment())
	maxSize := uint64(dialect.MaxBlockSize())
	width := dialect.PointerWidth()

	var entries []types.OrphanEntry
	consumed := types.NewRangeList()

	for _, rg := range unallocated.Ranges() {
		for c := rg.Offset; c+trailerSize <= rg.End(); c += stride {
			if consumed.Contains(c, trailerSize) {
				continue
			}

			trailer := make([]byte, trailerSize)
			if _, err := r.ReadAt(trailer, int64(c)); err != nil {
				continue
			}

			logicalSize := uint64(binary.LittleEndian.Uint16(trailer[0:2]))
			if logicalSize == 0 || logicalSize > maxSize || logicalSize > c {
				continue
			}
			backPointerDataID := readPointerAt(trailer[4:4+uint64(width)], width)
			checksumOffset := 4 + uint64(width)
			storedChecksum := binary.LittleEndian.Uint32(trailer[checksumOffset : checksumOffset+4])

			payloadStart := c - logicalSize
			if payloadStart < rg.Offset {
				continue
			}
			payload := make([]byte, logicalSize)
			if _, err := r.ReadAt(payload, int64(payloadStart)); err != nil {
				continue
			}
			if checksum.WeakCRC32(payload, 0) != storedChecksum {
				continue
			}
			if allocated != nil && allocated(backPointerDataID) {
				continue
			}
			if !probe(payload) {
				continue
			}

			entries = append(entries, types.OrphanEntry{
				SyntheticDescriptorID: syntheticDescriptorID(backPointerDataID, payloadStart),
				DataID:                backPointerDataID,
				FileOffset:            payloadStart,
				Size:                  uint32(logicalSize),
			})
			consumed.Add(types.Range{Offset: payloadStart, Length: logicalSize + trailerSize})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DataID != entries[j].DataID {
			return entries[i].DataID < entries[j].DataID
		}
		return entries[i].FileOffset < entries[j].FileOffset
	})
	return entries
}

// syntheticDescriptorID derives a stable id from (dataID, fileOffset) so
// repeated scans of the same file produce the same recovered descriptor
// ids. The high bit is set to keep synthetic ids out of the format's
// small well-known descriptor-id range (e.g. types.RootDescriptorID).
func syntheticDescriptorID(dataID, fileOffset uint64) uint64 {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], dataID)
	binary.LittleEndian.PutUint64(buf[8:16], fileOffset)
	crc := checksum.WeakCRC32(buf, 0)
	return uint64(crc) | (1 << 63)
}
