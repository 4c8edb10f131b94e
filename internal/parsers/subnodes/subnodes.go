// Package subnodes walks a descriptor's sub-node tree (spec.md §4.8), a
// small B-tree stored inside a chain of data blocks rather than inside
// NDB index pages. Grounded on the teacher's dependency-inversion idiom
// (internal/interfaces) for decoupling from the block-fetch pipeline: a
// SubNodeBlockSource interface, implemented by internal/resolve, keeps
// this package free of an import cycle back to the resolver.
package subnodes

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// SubNodeBlockSource resolves a data_id to the bytes of that one block,
// validated, decompressed and (unless internal) decrypted. XBLOCK chains
// are not followed.
type SubNodeBlockSource interface {
	ReadDataStream(dataID uint64) ([]byte, error)
}

const maxSubNodeDepth = types.MaxSubNodeDepth

// SubNodeMap walks the sub-node tree rooted at rootDataID and returns a
// flat map keyed by sub-node id, per spec.md §4.8.
func SubNodeMap(store SubNodeBlockSource, rootDataID uint64, opts types.Options) (map[uint64]types.SubNodeEntry, error) {
	result := make(map[uint64]types.SubNodeEntry)
	if rootDataID == 0 {
		return result, nil
	}
	if err := walk(store, rootDataID, 0, result); err != nil {
		return nil, err
	}
	return result, nil
}

func walk(store SubNodeBlockSource, dataID uint64, depth int, out map[uint64]types.SubNodeEntry) error {
	if depth > maxSubNodeDepth {
		return pfferr.New(pfferr.CorruptSubNodeTree, "sub-node tree exceeded max depth %d", maxSubNodeDepth)
	}

	data, err := store.ReadDataStream(dataID)
	if err != nil {
		return pfferr.Wrap(pfferr.CorruptSubNodeTree, err, "reading sub-node block data_id %d", dataID)
	}
	if len(data) < 2 {
		return pfferr.New(pfferr.CorruptSubNodeTree, "sub-node block data_id %d too short for header", dataID)
	}
	if data[0] != types.SubNodeTreeTag {
		return pfferr.New(pfferr.CorruptSubNodeTree, "sub-node block data_id %d: unexpected type tag 0x%02x", dataID, data[0])
	}
	level := data[1]

	if level > 0 {
		return walkBranch(store, data[2:], depth, out)
	}
	return walkLeaf(data[2:], dataID, out)
}

// branchEntrySize is {subnode_id: u64, child_data_id: u64}.
const branchEntrySize = 16

func walkBranch(store SubNodeBlockSource, entries []byte, depth int, out map[uint64]types.SubNodeEntry) error {
	for off := 0; off+branchEntrySize <= len(entries); off += branchEntrySize {
		childDataID := binary.LittleEndian.Uint64(entries[off+8 : off+16])
		if err := walk(store, childDataID, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// leafEntrySize is {subnode_id: u64, data_id: u64, nested_subnodes_id: u64}.
const leafEntrySize = 24

func walkLeaf(entries []byte, sourceDataID uint64, out map[uint64]types.SubNodeEntry) error {
	for off := 0; off+leafEntrySize <= len(entries); off += leafEntrySize {
		subNodeID := binary.LittleEndian.Uint64(entries[off : off+8])
		dataID := binary.LittleEndian.Uint64(entries[off+8 : off+16])
		nestedID := binary.LittleEndian.Uint64(entries[off+16 : off+24])

		if _, dup := out[subNodeID]; dup {
			return pfferr.New(pfferr.CorruptSubNodeTree, "duplicate sub-node id %d in block data_id %d", subNodeID, sourceDataID)
		}
		out[subNodeID] = types.SubNodeEntry{
			SubNodeID:        subNodeID,
			DataID:           dataID,
			NestedSubNodesID: nestedID,
		}
	}
	return nil
}
