// Package coordinator drives one discovery job end to end: dictionary
// resolution, capability detection, address expansion, worker pool
// supervision and the block-cycle drain loop.
package coordinator

import (
	"errors"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/address"
	"github.com/fusioninventory/netdiscovery/internal/dictionary"
	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/fusioninventory/netdiscovery/internal/probe"
	"github.com/fusioninventory/netdiscovery/internal/reporter"
	"github.com/fusioninventory/netdiscovery/internal/workerpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SpoolStore is the subset of *spool.Spool the Coordinator drains between
// cycles; workers use the narrower workerpool.Flusher for saves.
type SpoolStore interface {
	workerpool.Flusher
	dictionary.Store
	ResetCounter()
	Current() uint64
	Restore(idx uint64, out any) (bool, error)
	Remove(idx uint64) error
}

// TelemetrySink is the job-summary collaborator, written once per
// finished job.
type TelemetrySink interface {
	WriteJobSummary(model.JobSummary) error
}

// Config holds the agent-local knobs layered on top of the
// server-supplied job parameters.
type Config struct {
	Threads           int
	ModuleVersion     string
	AgentVersion      string
	NmapPath          string
	NmapEnabled       bool
	NetbiosEnabled    bool
	SNMPEnabled       bool
	ProbeTimeout      time.Duration
	StartupBatchSize  int
	StartupPause      time.Duration
	CyclePoll         time.Duration
	SendPause         time.Duration

	// ProbeRatePerSecond caps how many probe attempts, across every
	// worker, start per second. Zero means unlimited.
	ProbeRatePerSecond float64
}

func (c Config) withDefaults() Config {
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.StartupBatchSize <= 0 {
		c.StartupBatchSize = 4
	}
	if c.StartupPause <= 0 {
		c.StartupPause = time.Second
	}
	if c.CyclePoll <= 0 {
		c.CyclePoll = time.Second
	}
	if c.SendPause <= 0 {
		c.SendPause = time.Second
	}
	return c
}

// JobOptions is the server-supplied prolog content for one job: the
// address ranges, SNMP credentials and model dictionary.
type JobOptions struct {
	Ranges      []model.Range
	Credentials []model.Credential
	Dico        map[string]model.Model
	DicoHash    string
}

// Coordinator is the top-level per-job driver: it resolves the
// dictionary, detects probe capabilities, expands addresses, supervises
// the worker pool through block cycles, and reports the outcome.
type Coordinator struct {
	Config    Config
	Spool     SpoolStore
	Reporter  *reporter.Adapter
	Telemetry TelemetrySink

	// OnWorkersReady, if set, is called once the worker pool is
	// constructed for this job — the Health Surface uses it to pick up
	// the live WorkerSlot states it reports.
	OnWorkersReady func([]*workerpool.Worker)
}

// Run executes one job to completion and returns its JobSummary. It
// never returns an error: every failure category is handled by logging
// and either degrading or cleanly aborting.
func (c *Coordinator) Run(opts JobOptions) model.JobSummary {
	cfg := c.Config.withDefaults()
	started := time.Now()
	processNumber := model.ProcessNumber(started)
	summary := model.JobSummary{ProcessNumber: processNumber, Started: started}

	dict, err := dictionary.Resolve(dictionary.ServerOptions{Dico: opts.Dico, DicoHash: opts.DicoHash}, c.Spool)
	if err != nil {
		if errors.Is(err, dictionary.ErrRefreshRequired) {
			// The refresh message itself carries AGENT.END, so no separate
			// End() call follows it — this path sends exactly one outbound
			// message and returns without a START/NBIP exchange.
			log.Warn().Err(err).Msg("dictionary hash mismatch, requesting refresh and aborting job")
			c.Reporter.DictionaryRefresh(processNumber)
		} else {
			log.Error().Err(err).Msg("dictionary resolution failed, aborting job")
		}
		summary.Finished = time.Now()
		c.writeTelemetry(summary)
		return summary
	}

	caps := c.detectCapabilities(cfg, opts)

	items := address.Expand(opts.Ranges)
	summary.AddressCount = 0 // counted per-block below as items are consumed

	block := &workerpool.Block{}
	pipeline := c.buildPipeline(cfg, caps, opts, dict)

	workers := make([]*workerpool.Worker, cfg.Threads)
	for i := range workers {
		workers[i] = workerpool.NewWorker(i+1, block, c.Spool, pipeline, cfg.ModuleVersion, processNumber)
	}
	if c.OnWorkersReady != nil {
		c.OnWorkersReady(workers)
	}

	var group errgroup.Group
	for i, w := range workers {
		w := w
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Int("worker", w.ID).Msg("worker panic recovered")
				}
			}()
			w.Run()
			return nil
		})
		// Detach-and-sleep worker startup throttle, so a large thread count
		// doesn't open every SNMP/NetBIOS socket in the same instant.
		if (i+1)%cfg.StartupBatchSize == 0 {
			time.Sleep(cfg.StartupPause)
		}
	}

	c.Reporter.Start(processNumber)

	blockSize := cfg.Threads * model.AddressPerThread
	remaining := items
	for len(remaining) > 0 {
		n := blockSize
		if n > len(remaining) {
			n = len(remaining)
		}
		chunk := remaining[:n]
		remaining = remaining[n:]

		block.Splice(append([]model.AddressItem(nil), chunk...))
		summary.AddressCount += len(chunk)

		c.Reporter.BlockAnnounce(processNumber, len(chunk))

		for _, w := range workers {
			w.Slot.SetAction(workerpool.Run)
		}
		// Workers may still be asleep in their PAUSE idle poll when RUN is
		// set, so wait for the block to drain before checking their states.
		for block.Len() > 0 {
			time.Sleep(cfg.CyclePoll)
		}
		waitForAllState(workers, workerpool.Pause, cfg.CyclePoll)
		for _, w := range workers {
			w.Slot.SetAction(workerpool.Pause)
		}

		c.drainCycle(processNumber, &summary)
	}

	for _, w := range workers {
		w.Slot.SetAction(workerpool.Stop)
	}
	waitForAllState(workers, workerpool.Stop, cfg.CyclePoll)
	_ = group.Wait()

	c.Reporter.End(processNumber)

	summary.Finished = time.Now()
	c.writeTelemetry(summary)
	return summary
}

// drainCycle restores, sends and removes every spool entry from
// 1..maxIdx, sleeping between sends, then resets the counter so the next
// cycle's workers start from idx 1 again.
func (c *Coordinator) drainCycle(processNumber string, summary *model.JobSummary) {
	maxIdx := c.Spool.Current()
	for idx := uint64(1); idx <= maxIdx; idx++ {
		var batch model.Batch
		ok, err := c.Spool.Restore(idx, &batch)
		if err != nil {
			log.Error().Err(err).Uint64("idx", idx).Msg("failed to restore spool entry")
			continue
		}
		if !ok {
			continue
		}

		c.Reporter.DeviceBatch(batch)
		summary.DeviceCount += len(batch.Devices)
		for _, d := range batch.Devices {
			tallyHit(summary, d)
		}

		if err := c.Spool.Remove(idx); err != nil {
			log.Error().Err(err).Uint64("idx", idx).Msg("failed to remove drained spool entry")
		}
		time.Sleep(c.Config.withDefaults().SendPause)
	}
	c.Spool.ResetCounter()
}

// tallyHit attributes a device to the probe stage(s) that uniquely set
// its identifying fields, for the telemetry job summary.
func tallyHit(summary *model.JobSummary, d model.Device) {
	if d.NetportVendor != "" {
		summary.NmapHits++
	}
	if d.NetbiosName != "" || d.Workgroup != "" || d.UserSession != "" {
		summary.NetbiosHits++
	}
	if d.Description != "" {
		summary.SNMPHits++
	}
}

func (c *Coordinator) detectCapabilities(cfg Config, opts JobOptions) model.Capabilities {
	var caps model.Capabilities
	if cfg.NmapEnabled {
		caps.NmapAvailable, caps.NmapVersion = probe.DetectNmap(cfg.NmapPath)
	}
	caps.NetbiosAvailable = cfg.NetbiosEnabled
	caps.SNMPAvailable = cfg.SNMPEnabled && len(opts.Credentials) > 0

	if !caps.AnyAvailable() {
		log.Warn().Msg("no probe capability available, job will yield only empty batches")
	}
	return caps
}

func (c *Coordinator) buildPipeline(cfg Config, caps model.Capabilities, opts JobOptions, dict *dictionary.Dictionary) *probe.Pipeline {
	netbios := &probe.NetbiosStage{Timeout: cfg.ProbeTimeout}
	snmp := &probe.SNMPStage{
		Credentials: opts.Credentials,
		Dico:        dict,
		Refiners:    probe.DefaultRefiners(),
		Timeout:     cfg.ProbeTimeout,
	}
	pipeline := probe.NewPipeline(caps, cfg.NmapPath, netbios, snmp)
	if cfg.ProbeRatePerSecond > 0 {
		pipeline.Limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRatePerSecond), 1)
	}
	return pipeline
}

func (c *Coordinator) writeTelemetry(summary model.JobSummary) {
	if c.Telemetry == nil {
		return
	}
	if err := c.Telemetry.WriteJobSummary(summary); err != nil {
		log.Error().Err(err).Msg("failed to write job summary to telemetry sink")
	}
}

// waitForAllState polls every worker's Slot until all report want,
// sleeping poll between checks — the "wait until every worker's state is
// X" step of the block-cycle loop.
func waitForAllState(workers []*workerpool.Worker, want workerpool.Signal, poll time.Duration) {
	for {
		allMatch := true
		for _, w := range workers {
			if w.Slot.State() != want {
				allMatch = false
				break
			}
		}
		if allMatch {
			return
		}
		time.Sleep(poll)
	}
}
