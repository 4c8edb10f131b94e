package crypto

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// Inflate expands a raw-DEFLATE-compressed block payload (no zlib/gzip
// wrapper; D64_4K blocks store bare DEFLATE streams) into at most
// uncompressedSize bytes. A stream that ends early yields fewer bytes and
// no error; the caller checks the length.
func Inflate(src []byte, uncompressedSize uint32) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()

	out := make([]byte, uncompressedSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return out[:n], nil
}
