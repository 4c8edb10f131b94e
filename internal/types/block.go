package types

// BlockFlag records a validation or processing outcome for a DataBlock.
type BlockFlag uint16

const (
	BlockCompressed        BlockFlag = 1 << iota // payload was DEFLATE-compressed on disk
	BlockCRCMismatch                             // stored checksum didn't match computed checksum
	BlockSizeMismatch                             // trailer logical_size didn't match the expected size
	BlockIDMismatch                               // trailer back-pointer didn't match the requested data_id
	BlockValidated                                // all enabled checks passed (or were tolerated)
	BlockDecryptionForced                          // store claims EncryptionNone but content decrypts under COMPRESSIBLE
)

// Has reports whether flag is set in f.
func (f BlockFlag) Has(flag BlockFlag) bool {
	return f&flag != 0
}

// DataBlock is a single validated and (if applicable) decompressed data
// block. Decryption is not applied to it; the caller does that.
type DataBlock struct {
	// Data is the caller-visible payload: bytes[0:LogicalSize], or the
	// UncompressedSize bytes inflated from them for a compressed block.
	Data []byte

	LogicalSize       uint32
	UncompressedSize  uint32
	StoredChecksum    uint32
	BackPointerDataID uint64
	Flags             BlockFlag
}

// BlockTreeTag identifies a block whose payload is an array of child
// data_ids rather than leaf bytes.
const BlockTreeTag byte = 0x01

// BlockTreeDepth1 is an XBLOCK: its children are leaf data blocks.
const BlockTreeDepth1 byte = 1

// BlockTreeDepth2 is an XXBLOCK: its children are XBLOCKs.
const BlockTreeDepth2 byte = 2

// SubNodeTreeTag identifies the root of a per-descriptor sub-node tree.
const SubNodeTreeTag byte = 0x02
