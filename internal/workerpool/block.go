package workerpool

import (
	"sync"

	"github.com/fusioninventory/netdiscovery/internal/model"
)

// Block is the shared, stack-like container of AddressItems for one
// cycle. The Coordinator writes it once per cycle while every worker is
// in PAUSE; workers then pop from it concurrently under this mutex
// each worker pops under this mutex.
type Block struct {
	mu    sync.Mutex
	items []model.AddressItem
}

// Splice replaces the block's contents with items, discarding whatever
// (should be nothing) remained from the prior cycle.
func (b *Block) Splice(items []model.AddressItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = items
}

// Pop removes and returns one item from the block, LIFO. ok is false once
// the block is empty.
func (b *Block) Pop() (item model.AddressItem, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.items)
	if n == 0 {
		return model.AddressItem{}, false
	}
	item = b.items[n-1]
	b.items = b.items[:n-1]
	return item, true
}

// Len reports how many items remain, mostly useful for tests and health
// reporting.
func (b *Block) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
