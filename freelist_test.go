package tlbtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelHeapOrdering(t *testing.T) {
	h := new(relHeap)
	for _, v := range []RelPtr{512, 64, 4096, 128, 2048, 256} {
		h.push(v)
	}
	want := []RelPtr{64, 128, 256, 512, 2048, 4096}
	for _, w := range want {
		require.Equal(t, w, h.pop())
	}
	require.Empty(t, h.data)
}

func TestBlockFreelistBuckets(t *testing.T) {
	f := newBlockFreelist()
	_, ok := f.take(256)
	require.False(t, ok)

	f.put(8192, 256)
	f.put(4096, 256)
	f.put(1024, 512)

	r, ok := f.take(256)
	require.True(t, ok)
	require.Equal(t, RelPtr(4096), r)
	r, ok = f.take(512)
	require.True(t, ok)
	require.Equal(t, RelPtr(1024), r)
	_, ok = f.take(512)
	require.False(t, ok)
}
