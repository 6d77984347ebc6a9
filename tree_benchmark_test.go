package tlbtree

import (
	"hash/fnv"
	"path/filepath"
	"testing"

	"github.com/zbh255/gocode/random"
)

func benchKeys(n int) []Key {
	keys := make([]Key, 0, n)
	for i := 0; i < n; i++ {
		h := fnv.New64a()
		_, _ = h.Write([]byte(random.GenStringOnAscii(24)))
		k := h.Sum64()
		if k == 0 || k == MaxKey {
			k = uint64(i) + 1
		}
		keys = append(keys, k)
	}
	return keys
}

func BenchmarkStorePut(b *testing.B) {
	s, err := Open(Config{
		Path:     filepath.Join(b.TempDir(), "bench.pool"),
		PoolSize: 1024 * 1024 * 1024,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	keys := benchKeys(b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Put(keys[i], keys[i]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStoreGet(b *testing.B) {
	s, err := Open(Config{
		Path:     filepath.Join(b.TempDir(), "bench.pool"),
		PoolSize: 1024 * 1024 * 1024,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	keys := benchKeys(100000)
	for _, k := range keys {
		if err := s.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Get(keys[i%len(keys)])
	}
}

func BenchmarkFixtreeFindLower(b *testing.B) {
	pool, _, err := OpenPool(filepath.Join(b.TempDir(), "fix.pool"), 256*1024*1024)
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()
	recs := make([]Record, 0, 1<<20)
	for k := Key(1); k <= 1<<20; k++ {
		recs = append(recs, Record{Key: k, Val: k})
	}
	tree, err := NewFixtree(pool, recs)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.FindLower(Key(i)%(1<<20) + 1)
	}
}
