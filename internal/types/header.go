package types

// Magic is the 4-byte signature every PFF file begins with ("!BDN").
var Magic = [4]byte{0x21, 0x42, 0x44, 0x4e}

// HeaderSize is the fixed size, in bytes, of the PFF file header.
const HeaderSize = 564

// PageRef is a pointer to an index or allocation page together with the
// back-pointer the pointed-to page must carry. The back-pointer is the
// integrity witness checked on every page read.
type PageRef struct {
	// Offset is the absolute file offset of the page.
	Offset uint64
	// BackPointer is the identifier the page at Offset must carry in its
	// trailer.
	BackPointer uint64
}

// Header is the parsed form of the 564-byte PFF file header.
type Header struct {
	ContentType    ContentType
	DataVersion    uint16
	ContentVersion uint16
	Dialect        Dialect
	EncryptionType EncryptionType

	// DescriptorIndexRoot points at the root page of the node-descriptor
	// index B-tree.
	DescriptorIndexRoot PageRef
	// OffsetIndexRoot points at the root page of the block-offset index
	// B-tree.
	OffsetIndexRoot PageRef

	// FileSize is the file size declared by the header. It may lag the
	// true file size; consumers should trust actual file size for bounds
	// checks.
	FileSize uint64
}
