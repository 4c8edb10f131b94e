package resolve

import (
	"io"
	"sort"

	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// leafSpan is one leaf data_id's position within the logical stream.
// Size is taken from the offset index's declared size, so a Reader can
// be built without fetching any leaf bytes.
type leafSpan struct {
	dataID uint64
	offset uint64
	size   uint64
}

// Reader is the lazy, restartable byte stream produced by
// Resolver.OpenDescriptor (spec.md §4.9). It satisfies io.Reader,
// io.ReaderAt, and io.Seeker so it composes with the standard library;
// each leaf is fetched, decrypted, and decompressed on first touch and
// then served from the Resolver's shared block cache.
type Reader struct {
	rs    *Resolver
	spans []leafSpan
	size  uint64
	pos   uint64

	// flags accumulates tolerated-outcome flags (spec.md §8 scenario 2)
	// observed while assembling this stream: seedFlags from any
	// XBLOCK/XXBLOCK index blocks walked to find the leaves, plus each
	// leaf's own flags as it is first fetched by ReadAt/Read.
	flags types.BlockFlag
}

func (rs *Resolver) newReader(leafIDs []uint64, seedFlags types.BlockFlag) (*Reader, error) {
	spans := make([]leafSpan, 0, len(leafIDs))
	var cum uint64
	for _, id := range leafIDs {
		off, ok, err := rs.offIdx.Lookup(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pfferr.New(pfferr.DanglingDataId, "leaf data_id %d not found in offset index", id)
		}
		spans = append(spans, leafSpan{dataID: id, offset: cum, size: uint64(off.Size)})
		cum += uint64(off.Size)
	}
	return &Reader{rs: rs, spans: spans, size: cum, flags: seedFlags}, nil
}

// Size returns the total logical length of the stream.
func (r *Reader) Size() uint64 {
	return r.size
}

// Flags returns the tolerated-outcome flags observed so far while
// assembling this stream (spec.md §8 scenario 2): it reflects every
// XBLOCK/XXBLOCK index block walked to resolve the stream's leaves,
// plus every leaf block touched by a Read/ReadAt call so far. A leaf
// never read contributes nothing, so Flags can grow as more of the
// stream is consumed.
func (r *Reader) Flags() types.BlockFlag {
	return r.flags
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(r.pos) + offset
	case io.SeekEnd:
		target = int64(r.size) + offset
	default:
		return 0, pfferr.New(pfferr.Io, "reader: invalid whence %d", whence)
	}
	if target < 0 || uint64(target) > r.size {
		return 0, pfferr.New(pfferr.Io, "reader: seek offset %d out of range [0,%d]", target, r.size)
	}
	r.pos = uint64(target)
	return target, nil
}

// Read implements io.Reader, advancing the cursor.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.ReadAt(p, int64(r.pos))
	r.pos += uint64(n)
	return n, err
}

// ReadAt implements io.ReaderAt: a stateless read of len(p) bytes
// starting at off, spanning as many leaves as needed.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, pfferr.New(pfferr.Io, "reader: negative offset %d", off)
	}
	start := uint64(off)
	if start >= r.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	idx := sort.Search(len(r.spans), func(i int) bool {
		return r.spans[i].offset+r.spans[i].size > start
	})

	total := 0
	for idx < len(r.spans) && total < len(p) {
		span := r.spans[idx]
		data, flags, err := r.rs.fetchBlockData(span.dataID)
		if err != nil {
			return total, err
		}
		r.flags |= flags

		within := start - span.offset
		if within > uint64(len(data)) {
			return total, pfferr.New(pfferr.SizeMismatch, "leaf data_id %d: declared size %d exceeds actual %d bytes", span.dataID, span.size, len(data))
		}

		n := copy(p[total:], data[within:])
		total += n
		start += uint64(n)
		idx++
	}

	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}
