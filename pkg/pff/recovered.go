package pff

import (
	"fmt"

	"github.com/deploymenttheory/go-pff/internal/recovery"
	"github.com/deploymenttheory/go-pff/internal/types"
)

// OrphanEntry is a recovered descriptor whose parent index entries were
// missing but whose data blocks were found intact in an unallocated
// range (spec.md §4.10).
type OrphanEntry = types.OrphanEntry

// RecoveredDescriptors runs the recovery scan (spec.md §4.5, §4.10) on
// first call and caches the result for the lifetime of the Store: the
// scan walks the whole file, so repeated calls would otherwise redo an
// O(file size) sweep on every call. Entries are ordered by
// (DataID, FileOffset).
func (s *Store) RecoveredDescriptors() ([]OrphanEntry, error) {
	if s.recoveredCached {
		return s.recovered, nil
	}

	fileSize := uint64(s.file.Size())
	unallocated := recovery.LocateUnallocatedRanges(s.resolver.Device(), fileSize, s.resolver.Dialect())
	entries := recovery.ScanOrphans(s.resolver.Device(), unallocated, s.resolver.Dialect(), s.resolver.IsDataIDAllocated, nil)

	for _, e := range entries {
		s.diag.Notify(types.DiagnosticEvent{
			Kind:    types.DiagnosticOrphanAccepted,
			Message: fmt.Sprintf("recovered orphan descriptor %d from data_id %d at offset %d", e.SyntheticDescriptorID, e.DataID, e.FileOffset),
		})
	}

	s.recovered = entries
	s.recoveredCached = true
	return s.recovered, nil
}
