package canvas

import "sync"

// DefaultRank is the stacking rank of an item never brought to front.
const DefaultRank = 1

// ZOrder maps item ids to stacking ranks. The most recently raised item always
// holds the strictly highest rank.
type ZOrder struct {
	mu      sync.Mutex
	counter int
	ranks   map[string]int
}

// NewZOrder returns an empty z-order with the counter at DefaultRank.
func NewZOrder() *ZOrder {
	return &ZOrder{
		counter: DefaultRank,
		ranks:   make(map[string]int),
	}
}

// BringToFront assigns id the next counter value and returns it.
func (z *ZOrder) BringToFront(id string) int {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.counter++
	z.ranks[id] = z.counter
	return z.counter
}

// Rank returns the stacking rank for id, DefaultRank if never raised.
func (z *ZOrder) Rank(id string) int {
	z.mu.Lock()
	defer z.mu.Unlock()
	if r, ok := z.ranks[id]; ok {
		return r
	}
	return DefaultRank
}

// Ranks returns a copy of every explicitly assigned rank.
func (z *ZOrder) Ranks() map[string]int {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make(map[string]int, len(z.ranks))
	for id, r := range z.ranks {
		out[id] = r
	}
	return out
}

// Forget drops id from the map. The counter never decreases.
func (z *ZOrder) Forget(id string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.ranks, id)
}
