package storage

import (
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	chunk := &core.Chunk{
		Id:   core.IDFromContent("Season 5 premieres November 26."),
		Text: "Season 5 premieres November 26.",
		Metadata: map[string]string{
			core.MetaLink:          "https://example.org/st5",
			core.MetaHeaders:       "Release > Dates",
			core.MetaChunkPosition: "1",
		},
		Vector:     []float32{0.25, -0.5, 0.125, 1},
		InsertedAt: now,
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestMarshalUnmarshalChunk_Minimal(t *testing.T) {
	chunk := &core.Chunk{Text: "x"}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, "x", decoded.Text)
	assert.Nil(t, decoded.Metadata)
	assert.Nil(t, decoded.Vector)
	assert.True(t, decoded.InsertedAt.IsZero())
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	full := MarshalChunk(&core.Chunk{
		Text:     "some text",
		Metadata: map[string]string{"k": "v"},
		Vector:   []float32{1, 2, 3},
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", full[:len(full)-6]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChunk(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}
