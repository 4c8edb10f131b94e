package types

// OrphanEntry is a recovered descriptor whose parent index entries were
// missing from the descriptor index but whose data blocks were found,
// intact, in an unallocated range.
type OrphanEntry struct {
	// SyntheticDescriptorID is derived deterministically from (DataID,
	// FileOffset) so that re-scanning the same file yields the same id.
	SyntheticDescriptorID uint64
	DataID                uint64
	FileOffset            uint64
	Size                  uint32
}
