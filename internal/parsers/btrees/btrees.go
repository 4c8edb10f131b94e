// Package btrees implements the single generic B+-tree walker shared by
// the descriptor index and the offset index (spec.md §4.6), grounded on
// the teacher's split between a node reader
// (internal/parsers/btrees/btree_node_reader.go) and a binary-search
// routine (internal/parsers/btrees/btree_binary_searcher.go): this
// package plays both roles for one page shape, parameterized by leaf
// value type and a caller-supplied leaf codec.
package btrees

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/parsers/pages"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// indexPageHeaderSize is the fixed-size prefix of an index page's payload
// ahead of its entry array: a 2-byte entry_size, a 2-byte entry_count,
// and 12 reserved bytes, matching spec.md §4.6's
// "(payload_capacity - 16) / entry_size" entry count derivation.
const indexPageHeaderSize = 16

var indexPageKinds = []types.PageKind{
	types.PageKindIndexBranchOrLeaf0,
	types.PageKindIndexBranchOrLeaf1,
	types.PageKindIndexBranchOrLeaf2,
}

// LeafDecoder decodes one fixed-size leaf entry into its key and value.
type LeafDecoder[V any] func(entry []byte, dialect types.Dialect) (key uint64, value V, err error)

// Tree is a read-only view of one B+-tree rooted at Root.
type Tree[V any] struct {
	r       device.ReaderAt
	dialect types.Dialect
	root    types.PageRef
	decode  LeafDecoder[V]
	opts    types.Options
	diag    types.DiagnosticSink
}

// New builds a Tree rooted at root. diag may be nil (events are dropped).
func New[V any](r device.ReaderAt, dialect types.Dialect, root types.PageRef, decode LeafDecoder[V], opts types.Options, diag types.DiagnosticSink) *Tree[V] {
	if diag == nil {
		diag = types.NoopDiagnosticSink{}
	}
	return &Tree[V]{r: r, dialect: dialect, root: root, decode: decode, opts: opts, diag: diag}
}

type indexPage struct {
	page       *types.Page
	entrySize  int
	entryCount int
	entries    []byte
}

func (t *Tree[V]) readIndexPage(ref types.PageRef) (*indexPage, error) {
	page, err := pages.ReadPage(t.r, ref, t.dialect, indexPageKinds...)
	if err != nil {
		return nil, pfferr.Wrap(pfferr.CorruptIndex, err, "reading index page at offset %d", ref.Offset)
	}
	if len(page.Payload) < indexPageHeaderSize {
		return nil, pfferr.New(pfferr.CorruptIndex, "index page at offset %d: payload too small for header", ref.Offset)
	}
	entrySize := int(binary.LittleEndian.Uint16(page.Payload[0:2]))
	entryCount := int(binary.LittleEndian.Uint16(page.Payload[2:4]))
	if entrySize == 0 {
		return nil, pfferr.New(pfferr.CorruptIndex, "index page at offset %d: zero entry_size", ref.Offset)
	}
	entries := page.Payload[indexPageHeaderSize:]
	if entryCount*entrySize > len(entries) {
		return nil, pfferr.New(pfferr.CorruptIndex, "index page at offset %d: entry_count %d overruns payload", ref.Offset, entryCount)
	}
	return &indexPage{page: page, entrySize: entrySize, entryCount: entryCount, entries: entries}, nil
}

func (ip *indexPage) entry(i int) []byte {
	return ip.entries[i*ip.entrySize : (i+1)*ip.entrySize]
}

func (t *Tree[V]) readBranchEntry(entry []byte) (key uint64, child types.PageRef) {
	width := t.dialect.PointerWidth()
	if width == 4 {
		key = uint64(binary.LittleEndian.Uint32(entry[0:4]))
		child.BackPointer = uint64(binary.LittleEndian.Uint32(entry[4:8]))
		child.Offset = uint64(binary.LittleEndian.Uint32(entry[8:12]))
		return
	}
	key = binary.LittleEndian.Uint64(entry[0:8])
	child.BackPointer = binary.LittleEndian.Uint64(entry[8:16])
	child.Offset = binary.LittleEndian.Uint64(entry[16:24])
	return
}

// Lookup returns the entry whose key exactly matches key, or ok=false if
// none exists.
func (t *Tree[V]) Lookup(key uint64) (value V, ok bool, err error) {
	ref := t.root
	for depth := 0; ; depth++ {
		if depth > types.MaxIndexDepth {
			var zero V
			return zero, false, pfferr.New(pfferr.CorruptIndex, "index lookup exceeded max depth %d", types.MaxIndexDepth)
		}

		ip, err := t.readIndexPage(ref)
		if err != nil {
			var zero V
			if t.opts.TolerateIndexCorruption {
				return zero, false, nil
			}
			return zero, false, err
		}

		if ip.page.Level == 0 {
			return t.lookupLeaf(ip, key)
		}

		lo, hi, chosen := 0, ip.entryCount-1, -1
		for lo <= hi {
			mid := (lo + hi) / 2
			k, _ := t.readBranchEntry(ip.entry(mid))
			if k <= key {
				chosen = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		if chosen == -1 {
			var zero V
			return zero, false, nil
		}
		_, child := t.readBranchEntry(ip.entry(chosen))
		ref = child
	}
}

func (t *Tree[V]) lookupLeaf(ip *indexPage, key uint64) (value V, ok bool, err error) {
	lo, hi := 0, ip.entryCount-1
	for lo <= hi {
		mid := (lo + hi) / 2
		k, v, err := t.decode(ip.entry(mid), t.dialect)
		if err != nil {
			var zero V
			return zero, false, pfferr.Wrap(pfferr.CorruptIndex, err, "decoding leaf entry")
		}
		switch {
		case k == key:
			return v, true, nil
		case k < key:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	var zero V
	return zero, false, nil
}

// Entry is one (key, value) pair produced by Iter, in ascending key order.
type Entry[V any] struct {
	Key   uint64
	Value V
}

// frame tracks progress through one index page during an in-order walk.
type frame struct {
	ip    *indexPage
	depth int
	idx   int
}

// Iterator is a restartable lazy in-order walk; construct a fresh one via
// Tree.Iter to restart.
type Iterator[V any] struct {
	t       *Tree[V]
	stack   []*frame
	seen    map[uint64]bool
	pending error
}

// Iter starts a new in-order walk from the tree root.
func (t *Tree[V]) Iter() *Iterator[V] {
	it := &Iterator[V]{t: t, seen: map[uint64]bool{}}
	it.descend(t.root, 0)
	return it
}

func (it *Iterator[V]) descend(ref types.PageRef, depth int) {
	if it.pending != nil {
		return
	}
	if depth > types.MaxIndexDepth {
		it.fail(pfferr.New(pfferr.CorruptIndex, "index iteration exceeded max depth %d", types.MaxIndexDepth))
		return
	}
	ip, err := it.t.readIndexPage(ref)
	if err != nil {
		it.fail(err)
		return
	}
	it.stack = append(it.stack, &frame{ip: ip, depth: depth})
}

func (it *Iterator[V]) fail(err error) {
	if it.t.opts.TolerateIndexCorruption {
		it.t.diag.Notify(types.DiagnosticEvent{Kind: types.DiagnosticSkippedBranch, Message: err.Error()})
		return
	}
	it.pending = err
}

// Next returns the next entry in ascending key order, or ok=false once
// the walk is exhausted (check err to distinguish exhaustion from
// failure).
func (it *Iterator[V]) Next() (entry Entry[V], ok bool, err error) {
	for {
		if it.pending != nil {
			err, it.pending = it.pending, nil
			return Entry[V]{}, false, err
		}
		if len(it.stack) == 0 {
			return Entry[V]{}, false, nil
		}

		top := it.stack[len(it.stack)-1]
		if top.idx >= top.ip.entryCount {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		if top.ip.page.Level == 0 {
			raw := top.ip.entry(top.idx)
			top.idx++
			k, v, derr := it.t.decode(raw, it.t.dialect)
			if derr != nil {
				return Entry[V]{}, false, pfferr.Wrap(pfferr.CorruptIndex, derr, "decoding leaf entry")
			}
			if it.seen[k] {
				it.t.diag.Notify(types.DiagnosticEvent{Kind: types.DiagnosticDuplicateKey, Message: "duplicate key in index"})
				continue
			}
			it.seen[k] = true
			return Entry[V]{Key: k, Value: v}, true, nil
		}

		raw := top.ip.entry(top.idx)
		top.idx++
		_, child := it.t.readBranchEntry(raw)
		it.descend(child, top.depth+1)
	}
}
