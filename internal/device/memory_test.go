package device

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReaderReadAt(t *testing.T) {
	r := NewMemoryReader([]byte("0123456789"))
	buf := make([]byte, 4)

	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), buf)
}

func TestMemoryReaderReadAtPastEnd(t *testing.T) {
	r := NewMemoryReader([]byte("abc"))
	buf := make([]byte, 10)

	n, err := r.ReadAt(buf, 1)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("bc"), buf[:n])
}

func TestMemoryReaderSize(t *testing.T) {
	r := NewMemoryReader(make([]byte, 42))
	assert.Equal(t, int64(42), r.Size())
}
