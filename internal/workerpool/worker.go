package workerpool

import (
	"time"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/rs/zerolog/log"
)

// Prober fuses whatever probe capabilities are enabled into a Device for
// one address, returning ok=false when the acceptance predicate in
// the acceptance predicate rejects it. Implemented by
// internal/probe.Pipeline.
type Prober interface {
	Probe(item model.AddressItem) (model.Device, bool)
}

// Flusher is the subset of *spool.Spool a Worker needs to reserve an idx
// and persist a Batch.
type Flusher interface {
	Next() uint64
	Save(idx uint64, v any) error
}

// Worker is one of the N long-lived tasks cycling through the
// PAUSE/RUN/STOP protocol.
type Worker struct {
	ID            int
	Slot          *Slot
	Block         *Block
	Spool         Flusher
	Prober        Prober
	ModuleVersion string
	ProcessNumber string
	IdlePoll      time.Duration
	BatchSize     int
}

// NewWorker returns a Worker with the default 1s idle poll and
// DevicePerMessage batch size.
func NewWorker(id int, block *Block, sp Flusher, prober Prober, moduleVersion, processNumber string) *Worker {
	return &Worker{
		ID:            id,
		Slot:          NewSlot(),
		Block:         block,
		Spool:         sp,
		Prober:        prober,
		ModuleVersion: moduleVersion,
		ProcessNumber: processNumber,
		IdlePoll:      time.Second,
		BatchSize:     model.DevicePerMessage,
	}
}

// Run executes the handshake loop until the Worker reaches terminal STOP.
// It is meant to be launched as its own goroutine by the Coordinator.
func (w *Worker) Run() {
	var buf []model.Device

	for {
		switch w.Slot.State() {
		case Pause:
			switch w.Slot.Action() {
			case Pause:
				time.Sleep(w.IdlePoll)
			case Run:
				w.Slot.SetState(Run)
			case Stop, Delete:
				// The Coordinator's procedure only ever sets
				// action to RUN, PAUSE or STOP, never DELETE; DELETE is a
				// documented action value with no emitter in this core, so
				// a worker resting in PAUSE treats either the same way:
				// exit to the terminal state the Coordinator is waiting on.
				w.Slot.SetState(Stop)
				return
			}

		case Run:
			item, ok := w.Block.Pop()
			if !ok {
				w.flush(&buf)
				if w.Slot.Action() == Stop || w.Slot.Action() == Delete {
					w.Slot.SetState(Stop)
					return
				}
				w.Slot.SetState(Pause)
				continue
			}

			dev, accepted := w.Prober.Probe(item)
			if accepted {
				buf = append(buf, dev)
				if len(buf) >= w.BatchSize {
					w.flush(&buf)
				}
			}

		case Stop:
			return
		}
	}
}

// flush persists buf as a Batch if non-empty, then empties it.
func (w *Worker) flush(buf *[]model.Device) {
	if len(*buf) == 0 {
		return
	}
	batch := model.Batch{
		Devices:       append([]model.Device(nil), (*buf)...),
		ModuleVersion: w.ModuleVersion,
		ProcessNumber: w.ProcessNumber,
	}
	idx := w.Spool.Next()
	if err := w.Spool.Save(idx, batch); err != nil {
		log.Error().Err(err).Int("worker", w.ID).Uint64("idx", idx).Msg("failed to save batch to spool")
	}
	*buf = (*buf)[:0]
}
