package btrees

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// DecodeDescriptorEntry decodes one descriptor-index leaf entry: {
// descriptor_id, data_id, local_descriptors_id } scaled to the
// dialect's pointer width, followed by a fixed 4-byte
// parent_descriptor_id, per spec.md §4.6.
func DecodeDescriptorEntry(entry []byte, dialect types.Dialect) (uint64, types.DescriptorEntry, error) {
	width := dialect.PointerWidth()
	need := 3*width + 4
	if len(entry) < need {
		return 0, types.DescriptorEntry{}, pfferr.New(pfferr.CorruptIndex, "descriptor entry too short: need %d have %d", need, len(entry))
	}

	readWidth := func(b []byte) uint64 {
		if width == 4 {
			return uint64(binary.LittleEndian.Uint32(b))
		}
		return binary.LittleEndian.Uint64(b)
	}

	descID := readWidth(entry[0:width])
	dataID := readWidth(entry[width : 2*width])
	localID := readWidth(entry[2*width : 3*width])
	parentID := binary.LittleEndian.Uint32(entry[3*width : 3*width+4])

	return descID, types.DescriptorEntry{
		DescriptorID:       descID,
		DataID:             dataID,
		LocalDescriptorsID: localID,
		ParentID:           parentID,
	}, nil
}

// DecodeOffsetEntry decodes one offset-index leaf entry: { data_id,
// file_offset } scaled to the dialect's pointer width, followed by a
// fixed data_size/ref_count pair, per spec.md §4.6.
func DecodeOffsetEntry(entry []byte, dialect types.Dialect) (uint64, types.OffsetEntry, error) {
	width := dialect.PointerWidth()
	need := 2*width + 4
	if len(entry) < need {
		return 0, types.OffsetEntry{}, pfferr.New(pfferr.CorruptIndex, "offset entry too short: need %d have %d", need, len(entry))
	}

	readWidth := func(b []byte) uint64 {
		if width == 4 {
			return uint64(binary.LittleEndian.Uint32(b))
		}
		return binary.LittleEndian.Uint64(b)
	}

	dataID := readWidth(entry[0:width])
	fileOffset := readWidth(entry[width : 2*width])
	dataSize := binary.LittleEndian.Uint16(entry[2*width : 2*width+2])
	refCount := binary.LittleEndian.Uint16(entry[2*width+2 : 2*width+4])

	return dataID, types.OffsetEntry{
		DataID:     dataID,
		FileOffset: fileOffset,
		Size:       uint32(dataSize),
		RefCount:   refCount,
	}, nil
}
