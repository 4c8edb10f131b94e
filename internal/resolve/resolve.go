// Package resolve implements the descriptor resolver (spec.md §4.9): it
// turns a descriptor id into an assembled, lazily-read byte stream plus
// its sub-node map, following XBLOCK/XXBLOCK chains and applying
// decryption per data_id. Grounded on the teacher's
// internal/services/container_reader.go for the owns-the-file-and-cache
// shape, generalized from single fixed-size blocks to the PFF chained,
// variable-size block model.
package resolve

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-pff/internal/crypto"
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/parsers/blocks"
	"github.com/deploymenttheory/go-pff/internal/parsers/btrees"
	"github.com/deploymenttheory/go-pff/internal/parsers/subnodes"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// Resolver owns the file reader, both index trees, the decryption
// policy, and the block cache shared by every DescriptorHandle it opens.
type Resolver struct {
	r       device.ReaderAt
	dialect types.Dialect
	descIdx *btrees.Tree[types.DescriptorEntry]
	offIdx  *btrees.Tree[types.OffsetEntry]
	policy  *crypto.DecryptionPolicy
	cache   *blockCache
	opts    types.Options
	diag    types.DiagnosticSink
}

// New builds a Resolver over an already-parsed header's two index roots.
func New(r device.ReaderAt, dialect types.Dialect, descRoot, offRoot types.PageRef, declaredEncryption types.EncryptionType, opts types.Options, diag types.DiagnosticSink) *Resolver {
	opts = opts.WithDefaults()
	if diag == nil {
		diag = types.NoopDiagnosticSink{}
	}
	return &Resolver{
		r:       r,
		dialect: dialect,
		descIdx: btrees.New(r, dialect, descRoot, btrees.DecodeDescriptorEntry, opts, diag),
		offIdx:  btrees.New(r, dialect, offRoot, btrees.DecodeOffsetEntry, opts, diag),
		policy:  crypto.NewDecryptionPolicy(declaredEncryption, opts.ForceDecryption),
		cache:   newBlockCache(opts.MaxCachedEntries, opts.MaxCachedBytes),
		opts:    opts,
		diag:    diag,
	}
}

// DescriptorHandle is the resolved view of one descriptor: its stream and
// sub-node map, per spec.md §4.9 step 6.
type DescriptorHandle struct {
	DescriptorID uint64
	ParentID     uint32
	Stream       *Reader
	SubNodes     map[uint64]types.SubNodeEntry

	rs *Resolver
}

// DescriptorIterator returns a restartable, in-order iterator over every
// entry in the descriptor index, for Store.Descriptors.
func (rs *Resolver) DescriptorIterator() *btrees.Iterator[types.DescriptorEntry] {
	return rs.descIdx.Iter()
}

// Device returns the underlying file reader, for internal/recovery's
// unallocated-range scan, which must read raw bytes outside of any
// indexed block.
func (rs *Resolver) Device() device.ReaderAt {
	return rs.r
}

// Dialect returns the store's on-disk layout dialect.
func (rs *Resolver) Dialect() types.Dialect {
	return rs.dialect
}

// IsDataIDAllocated reports whether dataID currently appears in the live
// offset index, implemented to satisfy recovery.AllocatedDataIDChecker.
func (rs *Resolver) IsDataIDAllocated(dataID uint64) bool {
	_, ok, err := rs.offIdx.Lookup(dataID)
	return err == nil && ok
}

// OpenDescriptor runs the §4.9 pipeline for descriptorID.
func (rs *Resolver) OpenDescriptor(descriptorID uint64) (*DescriptorHandle, error) {
	desc, ok, err := rs.descIdx.Lookup(descriptorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pfferr.New(pfferr.UnknownDescriptor, "descriptor id %d not found", descriptorID)
	}

	leafIDs, rootFlags, err := rs.leafDataIDs(desc.DataID)
	if err != nil {
		return nil, err
	}
	stream, err := rs.newReader(leafIDs, rootFlags)
	if err != nil {
		return nil, err
	}

	subNodes := make(map[uint64]types.SubNodeEntry)
	if desc.LocalDescriptorsID != 0 {
		subNodes, err = subnodes.SubNodeMap(rs, desc.LocalDescriptorsID, rs.opts)
		if err != nil {
			return nil, err
		}
	}

	return &DescriptorHandle{
		DescriptorID: desc.DescriptorID,
		ParentID:     desc.ParentID,
		Stream:       stream,
		SubNodes:     subNodes,
		rs:           rs,
	}, nil
}

// SubNode resolves subNodeID against h's sub-node map into a nested
// DescriptorHandle (spec.md §6's `DescriptorHandle.subnode(subnode_id)
// → DescriptorHandle | None`): its own stream over the sub-node's
// data_id, and, if the entry carries a nested_subnodes_id, its own
// nested sub-node map. ok is false if h has no such sub-node.
func (h *DescriptorHandle) SubNode(subNodeID uint64) (handle *DescriptorHandle, ok bool, err error) {
	entry, found := h.SubNodes[subNodeID]
	if !found {
		return nil, false, nil
	}

	leafIDs, rootFlags, err := h.rs.leafDataIDs(entry.DataID)
	if err != nil {
		return nil, false, err
	}
	stream, err := h.rs.newReader(leafIDs, rootFlags)
	if err != nil {
		return nil, false, err
	}

	nested := make(map[uint64]types.SubNodeEntry)
	if entry.NestedSubNodesID != 0 {
		nested, err = subnodes.SubNodeMap(h.rs, entry.NestedSubNodesID, h.rs.opts)
		if err != nil {
			return nil, false, err
		}
	}

	return &DescriptorHandle{
		DescriptorID: entry.SubNodeID,
		Stream:       stream,
		SubNodes:     nested,
		rs:           h.rs,
	}, true, nil
}

// ReadDataStream implements subnodes.SubNodeBlockSource: sub-node tree
// blocks are always internal (never encrypted) single blocks, never
// themselves XBLOCK roots.
func (rs *Resolver) ReadDataStream(dataID uint64) ([]byte, error) {
	data, _, err := rs.fetchBlockData(dataID)
	return data, err
}

// leafDataIDs implements spec.md §4.9 step 4: inspect the root block's
// tag and, if it is an XBLOCK/XXBLOCK tree, recursively flatten it into
// an ordered list of leaf data_ids. A non-tree root block is itself the
// sole leaf of the stream. treeFlags accumulates the tolerated-outcome
// flags of every XBLOCK/XXBLOCK index block touched along the way
// (spec.md §8 scenario 2), so callers can seed a Reader's flag set with
// what was already observed before any leaf content was fetched.
func (rs *Resolver) leafDataIDs(dataID uint64) (leaves []uint64, treeFlags types.BlockFlag, err error) {
	data, flags, err := rs.fetchBlockData(dataID)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 2 || data[0] != types.BlockTreeTag {
		return []uint64{dataID}, 0, nil
	}
	treeFlags |= flags

	depth := data[1]
	if depth != types.BlockTreeDepth1 && depth != types.BlockTreeDepth2 {
		return nil, 0, pfferr.New(pfferr.CorruptBlock, "block tree data_id %d: unsupported depth %d", dataID, depth)
	}

	children, err := rs.decodeBlockTreeChildren(data[2:])
	if err != nil {
		return nil, 0, pfferr.Wrap(pfferr.CorruptBlock, err, "decoding block tree data_id %d", dataID)
	}

	if depth == types.BlockTreeDepth1 {
		return children, treeFlags, nil
	}

	for _, childID := range children {
		sub, subFlags, err := rs.leafDataIDs(childID)
		if err != nil {
			return nil, 0, err
		}
		leaves = append(leaves, sub...)
		treeFlags |= subFlags
	}
	return leaves, treeFlags, nil
}

func (rs *Resolver) decodeBlockTreeChildren(entries []byte) ([]uint64, error) {
	width := rs.dialect.PointerWidth()
	if len(entries)%width != 0 {
		return nil, pfferr.New(pfferr.CorruptBlock, "block tree entry array not a multiple of pointer width %d", width)
	}
	children := make([]uint64, 0, len(entries)/width)
	for off := 0; off < len(entries); off += width {
		children = append(children, readPointer(entries[off:off+width], width))
	}
	return children, nil
}

// fetchBlockData returns dataID's fully assembled bytes and the
// tolerated-outcome flags recorded while reading it (spec.md §8
// scenario 2): read, validated, decompressed (C7), then decrypted (C2)
// unless the offset index marks it internal. Results, flags included,
// are cached by data_id.
func (rs *Resolver) fetchBlockData(dataID uint64) ([]byte, types.BlockFlag, error) {
	if data, flags, ok := rs.cache.get(dataID); ok {
		return data, flags, nil
	}

	off, ok, err := rs.offIdx.Lookup(dataID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, pfferr.New(pfferr.DanglingDataId, "data_id %d not found in offset index", dataID)
	}

	block, err := blocks.ReadBlock(rs.r, dataID, off.FileOffset, off.Size, rs.dialect, rs.opts)
	if err != nil {
		return nil, 0, err
	}

	data := block.Data
	if !off.IsInternal() {
		kind := rs.policy.Kind(dataID, data)
		if _, err := crypto.Decrypt(kind, dataID, data); err != nil {
			return nil, 0, pfferr.Wrap(pfferr.CorruptBlock, err, "decrypting data_id %d", dataID)
		}
		if rs.policy.Forced() {
			block.Flags |= types.BlockDecryptionForced
			rs.diag.Notify(types.DiagnosticEvent{Kind: types.DiagnosticDecryptionForced, Message: "store declared EncryptionNone but content decrypted under COMPRESSIBLE"})
		}
	}

	if tolerated := block.Flags & (types.BlockCRCMismatch | types.BlockSizeMismatch | types.BlockIDMismatch); tolerated != 0 {
		rs.diag.Notify(types.DiagnosticEvent{Kind: types.DiagnosticBlockTolerated, Message: fmt.Sprintf("data_id %d: tolerated block flags %v", dataID, tolerated)})
	}

	rs.cache.put(dataID, data, block.Flags)
	return data, block.Flags, nil
}

func readPointer(b []byte, width int) uint64 {
	if width == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}
