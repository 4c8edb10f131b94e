package types

// SubNodeEntry is one leaf of a descriptor's sub-node tree: a mapping from
// a sub-node id to its data stream and, optionally, a nested sub-node tree
// root (used by attachments that themselves carry sub-objects).
type SubNodeEntry struct {
	SubNodeID        uint64
	DataID           uint64
	NestedSubNodesID uint64
}
