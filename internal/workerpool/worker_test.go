package workerpool

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/model"
)

type fakeFlusher struct {
	mu      sync.Mutex
	counter uint64
	batches map[uint64]model.Batch
}

func newFakeFlusher() *fakeFlusher {
	return &fakeFlusher{batches: make(map[uint64]model.Batch)}
}

func (f *fakeFlusher) Next() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	return f.counter
}

func (f *fakeFlusher) Save(idx uint64, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[idx] = v.(model.Batch)
	return nil
}

func (f *fakeFlusher) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []uint64
	for k := range f.batches {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var out []int
	for _, k := range keys {
		out = append(out, len(f.batches[k].Devices))
	}
	return out
}

// acceptAllProber always returns an accepted device derived from the IP.
type acceptAllProber struct{}

func (acceptAllProber) Probe(item model.AddressItem) (model.Device, bool) {
	return model.Device{IP: item.IP, Entity: item.Entity, DNSHostname: item.IP}, true
}

// rejectAllProber never accepts anything.
type rejectAllProber struct{}

func (rejectAllProber) Probe(item model.AddressItem) (model.Device, bool) {
	return model.Device{}, false
}

func waitForState(t *testing.T, slot *Slot, want Signal) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if slot.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, currently %s", want, slot.State())
}

// waitForDrained waits until the worker has popped every item; the slot
// starts in PAUSE, so waiting for PAUSE alone can return before any work.
func waitForDrained(t *testing.T, block *Block) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if block.Len() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for the block to drain, %d items left", block.Len())
}

func TestWorkerBatchingBoundary(t *testing.T) {
	block := &Block{}
	items := make([]model.AddressItem, 9)
	for i := range items {
		items[i] = model.AddressItem{IP: "10.0.0.1", Entity: "e"}
	}
	block.Splice(items)

	flusher := newFakeFlusher()
	w := NewWorker(1, block, flusher, acceptAllProber{}, "1.0", "2100000")
	w.IdlePoll = time.Millisecond

	w.Slot.SetAction(Run)
	go w.Run()

	waitForDrained(t, block)
	waitForState(t, w.Slot, Pause)

	sizes := flusher.sizes()
	if len(sizes) != 3 {
		t.Fatalf("expected 3 batches, got %d: %v", len(sizes), sizes)
	}
	if sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 1 {
		t.Fatalf("expected batch sizes [4 4 1], got %v", sizes)
	}

	w.Slot.SetAction(Stop)
	waitForState(t, w.Slot, Stop)
}

func TestWorkerRejectsYieldNoBatches(t *testing.T) {
	block := &Block{}
	block.Splice([]model.AddressItem{{IP: "10.0.0.1", Entity: "e"}})

	flusher := newFakeFlusher()
	w := NewWorker(1, block, flusher, rejectAllProber{}, "1.0", "2100000")
	w.IdlePoll = time.Millisecond

	w.Slot.SetAction(Run)
	go w.Run()
	waitForDrained(t, block)
	waitForState(t, w.Slot, Pause)

	if len(flusher.sizes()) != 0 {
		t.Fatalf("expected no batches for an all-reject block")
	}

	w.Slot.SetAction(Stop)
	waitForState(t, w.Slot, Stop)
}

func TestWorkerDeleteFromPauseTerminatesDirectly(t *testing.T) {
	block := &Block{}
	w := NewWorker(1, block, newFakeFlusher(), acceptAllProber{}, "1.0", "2100000")
	w.IdlePoll = time.Millisecond

	go w.Run()
	w.Slot.SetAction(Delete)
	waitForState(t, w.Slot, Stop)
}

func TestWorkerEmptyBlockCyclesBackToPauseWithoutFlush(t *testing.T) {
	block := &Block{}
	flusher := newFakeFlusher()
	w := NewWorker(1, block, flusher, acceptAllProber{}, "1.0", "2100000")
	w.IdlePoll = time.Millisecond

	w.Slot.SetAction(Run)
	go w.Run()
	waitForState(t, w.Slot, Pause)

	if len(flusher.sizes()) != 0 {
		t.Fatalf("expected no batches for an empty block")
	}
	w.Slot.SetAction(Stop)
	waitForState(t, w.Slot, Stop)
}
