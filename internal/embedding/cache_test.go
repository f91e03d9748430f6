package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

// Concurrent hits on the same keys rewrite LRU list pointers; run with -race.
func TestEmbeddingCache_ConcurrentAccess(t *testing.T) {
	c := NewEmbeddingCache(16)
	for i := 0; i < 8; i++ {
		c.Set(fmt.Sprintf("key-%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", (g+i)%8)
				if v, ok := c.Get(key); ok && len(v) != 1 {
					t.Errorf("Get(%s) returned %v", key, v)
				}
				if i%10 == 0 {
					c.Set(fmt.Sprintf("key-%d", (g*i)%32), []float32{float32(i)})
				}
			}
		}(g)
	}
	wg.Wait()
}

type countingEmbedder struct {
	*MockEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.MockEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_HitsSkipEncoder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("encoder called %d times, want 1", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached embedding differs at %d", i)
		}
	}
}

func TestNewCachedEmbedder_DisabledPassThrough(t *testing.T) {
	inner := NewMockEmbedder(8)
	if got := NewCachedEmbedder(inner, 0); got != Embedder(inner) {
		t.Error("zero capacity should return the inner embedder unchanged")
	}
}
