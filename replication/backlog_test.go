package replication

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendIndexesEvery64thBlock(t *testing.T) {
	b := NewBacklog(4)
	b.Append(bytes.Repeat([]byte("x"), 4*200))
	require.Equal(t, 200, b.Blocks().Len())
	// blocks 0, 64, 128 and 192
	require.Equal(t, 4, b.Index().Size())
	require.Equal(t, int64(800), b.Offset())
}

func TestReadFrom(t *testing.T) {
	b := NewBacklog(4)
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	b.Append(payload)

	out, ok := b.ReadFrom(517)
	require.True(t, ok)
	require.Equal(t, payload[517:], out)

	out, ok = b.ReadFrom(1000)
	require.True(t, ok)
	require.Empty(t, out)

	_, ok = b.ReadFrom(1001)
	require.False(t, ok)
}

func TestDetach(t *testing.T) {
	b := NewBacklog(4)
	b.Append(bytes.Repeat([]byte("x"), 400))
	blocks, index := b.Detach()
	require.Equal(t, 100, blocks.Len())
	require.Equal(t, 2, index.Size())
	require.Equal(t, 0, b.Blocks().Len())
	require.Equal(t, int64(400), b.Offset())

	_, ok := b.ReadFrom(10)
	require.False(t, ok)
	b.Append([]byte("abcd"))
	out, ok := b.ReadFrom(402)
	require.True(t, ok)
	require.Equal(t, "cd", string(out))

	blocks.Release()
	index.Release()
	require.Equal(t, 0, blocks.Len())
}
