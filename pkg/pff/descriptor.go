package pff

import (
	"github.com/deploymenttheory/go-pff/internal/resolve"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// BlockFlag records a tolerated or processing outcome for a fetched
// block, surfaced so a caller can observe spec.md §8 scenario 2: with
// tolerance enabled, a checksum/id/size mismatch doesn't fail the read,
// but the outcome must still be inspectable.
type BlockFlag = types.BlockFlag

const (
	BlockCompressed       = types.BlockCompressed
	BlockCRCMismatch      = types.BlockCRCMismatch
	BlockSizeMismatch     = types.BlockSizeMismatch
	BlockIDMismatch       = types.BlockIDMismatch
	BlockValidated        = types.BlockValidated
	BlockDecryptionForced = types.BlockDecryptionForced
)

// DescriptorHandle is a resolved descriptor: its assembled data stream
// plus the sub-node map attached to it, if any. It wraps
// internal/resolve.DescriptorHandle so callers outside this module never
// import an internal package.
type DescriptorHandle struct {
	inner *resolve.DescriptorHandle
}

// DescriptorID returns the descriptor's own id.
func (h *DescriptorHandle) DescriptorID() uint64 {
	return h.inner.DescriptorID
}

// ParentID returns the descriptor id of this descriptor's parent folder.
func (h *DescriptorHandle) ParentID() uint32 {
	return h.inner.ParentID
}

// Stream returns the descriptor's assembled, lazily-read data stream.
func (h *DescriptorHandle) Stream() *Reader {
	return &Reader{inner: h.inner.Stream}
}

// SubNode resolves subNodeID into its own DescriptorHandle (spec.md §6):
// its stream, and, if it carries a nested sub-node tree, that tree's
// map too. ok is false if this descriptor has no such sub-node.
func (h *DescriptorHandle) SubNode(subNodeID uint64) (handle *DescriptorHandle, ok bool, err error) {
	inner, ok, err := h.inner.SubNode(subNodeID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &DescriptorHandle{inner: inner}, true, nil
}

// SubNodeIDs returns every sub-node id attached to this descriptor, in
// no particular order.
func (h *DescriptorHandle) SubNodeIDs() []uint64 {
	ids := make([]uint64, 0, len(h.inner.SubNodes))
	for id := range h.inner.SubNodes {
		ids = append(ids, id)
	}
	return ids
}

// Reader is a descriptor's assembled data stream: it implements
// io.Reader, io.ReaderAt, and io.Seeker over a possibly XBLOCK-chained,
// per-leaf-encrypted sequence of data blocks, fetching and decrypting
// each leaf only when first touched.
type Reader struct {
	inner *resolve.Reader
}

// Size returns the stream's total decrypted length in bytes.
func (r *Reader) Size() uint64 {
	return r.inner.Size()
}

// Flags reports the tolerated-outcome flags observed so far while
// assembling this stream (spec.md §8 scenario 2): it only reflects
// blocks already touched by a Read/ReadAt call (plus any XBLOCK/XXBLOCK
// index blocks walked to resolve the stream's leaves), so it can grow
// as more of the stream is read.
func (r *Reader) Flags() BlockFlag {
	return r.inner.Flags()
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	return r.inner.Read(p)
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	return r.inner.ReadAt(p, off)
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	return r.inner.Seek(offset, whence)
}
