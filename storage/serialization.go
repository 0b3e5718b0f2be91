package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/quarry/core"
)

// chunkMUS encodes a core.Chunk as
// id | text | metadata count | (key, value)... | vector length | float32... | inserted_at (unix micros).
type chunkMUS struct{}

// ChunkMUS is the MUS serializer for stored chunks.
var ChunkMUS = chunkMUS{}

func (chunkMUS) Size(c core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += ord.String.Size(c.Text)
	size += varint.Int.Size(len(c.Metadata))
	for k, v := range c.Metadata {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	size += varint.Int.Size(len(c.Vector))
	for _, f := range c.Vector {
		size += raw.Float32.Size(f)
	}
	return size + varint.Int64.Size(insertedMicros(c))
}

func (chunkMUS) Marshal(c core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(len(c.Metadata), bs[n:])
	for k, v := range c.Metadata {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}
	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, f := range c.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n + varint.Int64.Marshal(insertedMicros(c), bs[n:])
}

func (chunkMUS) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	id, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	c.Id = core.ID(id)

	var m int
	if c.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m

	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if count < 0 || count > len(bs)-n {
		err = fmt.Errorf("%w: metadata count %d", ErrTruncatedData, count)
		return
	}
	if count > 0 {
		c.Metadata = make(map[string]string, count)
	}
	for range count {
		var k, v string
		if k, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += m
		if v, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += m
		c.Metadata[k] = v
	}

	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if count < 0 || count*4 > len(bs)-n {
		err = fmt.Errorf("%w: vector length %d", ErrTruncatedData, count)
		return
	}
	if count > 0 {
		c.Vector = make([]float32, count)
	}
	for i := range count {
		if c.Vector[i], m, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += m
	}

	var micros int64
	if micros, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if micros != 0 {
		c.InsertedAt = time.UnixMicro(micros).UTC()
	}
	return
}

func insertedMicros(c core.Chunk) int64 {
	if c.InsertedAt.IsZero() {
		return 0
	}
	return c.InsertedAt.UnixMicro()
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty chunk data", ErrSerializationFailed)
	}
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}
