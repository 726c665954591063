package canvas

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZOrder_DefaultRank(t *testing.T) {
	z := NewZOrder()
	assert.Equal(t, DefaultRank, z.Rank("never-raised"))
}

func TestZOrder_MostRecentIsStrictlyHighest(t *testing.T) {
	z := NewZOrder()
	calls := []string{"a", "b", "a", "c", "c", "b", "a", "d"}

	for i, id := range calls {
		z.BringToFront(id)
		for _, other := range calls[:i+1] {
			if other == id {
				continue
			}
			assert.Greater(t, z.Rank(id), z.Rank(other), "after call %d", i)
		}
		assert.Greater(t, z.Rank(id), z.Rank("untouched"))
	}
}

func TestZOrder_ConcurrentRaisesAreUnique(t *testing.T) {
	z := NewZOrder()
	var wg sync.WaitGroup
	ranks := make([]int, 100)
	for i := range ranks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ranks[i] = z.BringToFront("item")
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, r := range ranks {
		assert.False(t, seen[r], "rank %d assigned twice", r)
		seen[r] = true
	}
	assert.Equal(t, DefaultRank+100, z.Rank("item"))
}

func TestZOrder_Forget(t *testing.T) {
	z := NewZOrder()
	z.BringToFront("a")
	z.Forget("a")
	assert.Equal(t, DefaultRank, z.Rank("a"))
	assert.Equal(t, DefaultRank+2, z.BringToFront("b"), "counter never goes back")
}
