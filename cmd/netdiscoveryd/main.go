// Command netdiscoveryd runs one discovery job end to end — dictionary
// resolution, address expansion, worker-pool supervision and result
// reporting — then keeps the health surface up until signalled to stop.
//
// The job prolog (ranges, credentials, dictionary) and the outbound
// transport are external collaborators, abstracted behind
// coordinator.JobOptions and reporter.OutboundClient; this binary wires
// a local YAML job file and a logging client in their place.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/fusioninventory/netdiscovery/internal/config"
	"github.com/fusioninventory/netdiscovery/internal/coordinator"
	"github.com/fusioninventory/netdiscovery/internal/health"
	"github.com/fusioninventory/netdiscovery/internal/logger"
	"github.com/fusioninventory/netdiscovery/internal/reporter"
	"github.com/fusioninventory/netdiscovery/internal/spool"
	"github.com/fusioninventory/netdiscovery/internal/telemetry"
	"github.com/fusioninventory/netdiscovery/internal/workerpool"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the agent-local YAML config")
	jobPath := flag.String("job", "", "path to a local job file standing in for the server prolog (optional)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	logger.Setup(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	sp, err := spool.Open(cfg.SpoolDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.SpoolDir).Msg("failed to open spool")
	}

	var telemetrySink coordinator.TelemetrySink
	if cfg.Telemetry.URL != "" {
		w := telemetry.NewWriter(telemetry.Config{
			URL:    cfg.Telemetry.URL,
			Token:  cfg.Telemetry.Token,
			Org:    cfg.Telemetry.Org,
			Bucket: cfg.Telemetry.Bucket,
		})
		defer w.Close()
		telemetrySink = w
	}

	healthSrv := health.NewServer(cfg.HealthCheckPort, sp)
	healthSrv.Start()

	opts, err := loadJob(*jobPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *jobPath).Msg("failed to load job file")
	}

	adapter := &reporter.Adapter{
		Client:        loggingClient{},
		AgentVersion:  cfg.AgentVersion,
		ModuleVersion: cfg.ModuleVersion,
	}

	c := &coordinator.Coordinator{
		Config: coordinator.Config{
			Threads:            cfg.ThreadsDiscovery,
			ModuleVersion:      cfg.ModuleVersion,
			AgentVersion:       cfg.AgentVersion,
			NmapPath:           cfg.NmapPath,
			NmapEnabled:        cfg.NmapEnabled,
			NetbiosEnabled:     cfg.NetbiosEnabled,
			SNMPEnabled:        cfg.SNMPEnabled,
			ProbeTimeout:       cfg.ProbeTimeout,
			StartupBatchSize:   cfg.WorkerStartupBatchSize,
			StartupPause:       cfg.WorkerStartupPause,
			ProbeRatePerSecond: cfg.ProbeRatePerSecond,
		},
		Spool:     sp,
		Reporter:  adapter,
		Telemetry: telemetrySink,
		OnWorkersReady: func(workers []*workerpool.Worker) {
			healthSrv.SetWorkers(workers)
		},
	}

	log.Info().Int("ranges", len(opts.Ranges)).Msg("starting discovery job")
	summary := c.Run(opts)
	healthSrv.SetWorkers(nil)
	healthSrv.SetLastSummary(summary)
	log.Info().
		Str("process_number", summary.ProcessNumber).
		Int("address_count", summary.AddressCount).
		Int("device_count", summary.DeviceCount).
		Dur("duration", summary.Duration()).
		Msg("discovery job finished")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received, exiting")
}
