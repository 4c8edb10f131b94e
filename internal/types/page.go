package types

// Page is a validated fixed-size index or allocation page.
type Page struct {
	// Kind is the trailer's type byte, already checked against type_copy
	// and against the set of kinds the caller expected.
	Kind PageKind
	// Level is the trailer's level byte: 0 for a leaf index page, >0 for
	// a branch index page. Meaningless for allocation pages.
	Level uint8
	// BackPointer is the trailer's back_pointer field.
	BackPointer uint64
	// Payload is the page's bytes, excluding the trailer.
	Payload []byte
}
