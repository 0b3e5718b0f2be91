package badger

import (
	"encoding/binary"

	"github.com/poiesic/quarry/core"
)

// Key prefixes for different data types
const (
	chunkPrefix = "chunk:"
)

// makeChunkKey generates a key for a chunk by ID.
// Format: prefix + 8 byte BigEndian ID, so key order is ID order.
func makeChunkKey(id core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// chunkIDFromKey extracts the ID from a chunk key.
func chunkIDFromKey(key []byte) (core.ID, bool) {
	if len(key) != len(chunkPrefix)+8 || string(key[:len(chunkPrefix)]) != chunkPrefix {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(chunkPrefix):])), true
}
