package pff

import (
	"github.com/deploymenttheory/go-pff/internal/parsers/btrees"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// DescriptorIterator walks every entry in the descriptor index in
// ascending descriptor-id order. It is restartable: Store.Descriptors
// always returns a fresh iterator starting from the root.
type DescriptorIterator struct {
	inner *btrees.Iterator[types.DescriptorEntry]
}

// Next advances the iterator. ok is false once every entry has been
// visited; a non-nil err means the walk stopped early (spec.md §4.6's
// TolerateIndexCorruption governs whether a corrupt subtree instead
// causes that branch to be skipped rather than the walk failing).
func (it *DescriptorIterator) Next() (entry types.DescriptorEntry, ok bool, err error) {
	e, ok, err := it.inner.Next()
	return e.Value, ok, err
}

// Descriptors returns a fresh, restartable iterator over the descriptor
// index (spec.md §4.6).
func (s *Store) Descriptors() *DescriptorIterator {
	return &DescriptorIterator{inner: s.resolver.DescriptorIterator()}
}
