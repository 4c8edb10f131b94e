// Package pff is the public facade for reading Microsoft Personal
// Folders File stores (PST, OST, PAB), parallel in shape to the
// teacher's pkg/services: a small set of exported types
// (Store, DescriptorHandle, Reader, Options, DiagnosticSink) wiring
// together the internal header parser, descriptor resolver, and
// recovery scanner behind one entry point, Open.
package pff

import (
	"github.com/deploymenttheory/go-pff/internal/device"
	"github.com/deploymenttheory/go-pff/internal/parsers/header"
	"github.com/deploymenttheory/go-pff/internal/pfferr"
	"github.com/deploymenttheory/go-pff/internal/resolve"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// Options controls strictness and resource usage of a Store. It is a
// re-export of types.Options so callers never need to import an
// internal package to configure Open.
type Options = types.Options

// DiagnosticSink receives non-fatal diagnostic events emitted while
// walking indexes or decrypting blocks. A nil sink discards every event.
type DiagnosticSink = types.DiagnosticSink

// DiagnosticEvent is one non-fatal event emitted to a DiagnosticSink.
type DiagnosticEvent = types.DiagnosticEvent

// Dialect identifies which of the three on-disk PFF layouts a store uses.
type Dialect = types.Dialect

// Store is an opened PFF file: the parsed header, the two root B+-trees,
// the descriptor resolver, and (after RecoveredDescriptors is first
// called) a cached set of orphan-recovered descriptors. A *Store is
// single-threaded cooperative — see SPEC_FULL.md §5 — though its
// internal block cache is independently mutex-guarded as a
// belt-and-suspenders measure, mirroring the teacher's ContainerReader.
type Store struct {
	file     *device.FileReader
	header   *types.Header
	resolver *resolve.Resolver
	opts     types.Options
	diag     types.DiagnosticSink

	recovered       []types.OrphanEntry
	recoveredCached bool
}

// Open reads and validates path's 564-byte header, builds the two root
// B+-trees, and returns a ready-to-use Store. opts is normalized with
// types.Options.WithDefaults (zero value selects a 256-entry / 32 MiB
// block cache). diag may be nil.
func Open(path string, opts Options, diag DiagnosticSink) (*Store, error) {
	f, err := device.NewFileReader(path)
	if err != nil {
		return nil, pfferr.Wrap(pfferr.Io, err, "opening %q", path)
	}

	h, err := header.Read(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	opts = opts.WithDefaults()
	if diag == nil {
		diag = types.NoopDiagnosticSink{}
	}

	r := resolve.New(f, h.Dialect, h.DescriptorIndexRoot, h.OffsetIndexRoot, h.EncryptionType, opts, diag)

	return &Store{
		file:     f,
		header:   h,
		resolver: r,
		opts:     opts,
		diag:     diag,
	}, nil
}

// Dialect reports which on-disk layout the store uses.
func (s *Store) Dialect() Dialect {
	return s.header.Dialect
}

// ContentType reports whether the store is a PST, OST, or PAB.
func (s *Store) ContentType() types.ContentType {
	return s.header.ContentType
}

// EncryptionType reports the encryption type declared by the header.
// The actual decryption applied to a given block may differ if the
// mislabelled-store probe (spec.md §4.2) overrides it; see
// DiagnosticDecryptionForced.
func (s *Store) EncryptionType() types.EncryptionType {
	return s.header.EncryptionType
}

// RootDescriptor opens the well-known root-folder descriptor
// (types.RootDescriptorID).
func (s *Store) RootDescriptor() (*DescriptorHandle, error) {
	return s.OpenDescriptor(types.RootDescriptorID)
}

// OpenDescriptor resolves descriptorID through the descriptor index,
// assembling its data stream and sub-node map (spec.md §4.9).
func (s *Store) OpenDescriptor(descriptorID uint64) (*DescriptorHandle, error) {
	h, err := s.resolver.OpenDescriptor(descriptorID)
	if err != nil {
		return nil, err
	}
	return &DescriptorHandle{inner: h}, nil
}

// Close releases the underlying file handle. A Store must not be used
// after Close.
func (s *Store) Close() error {
	return s.file.Close()
}
