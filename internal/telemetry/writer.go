// Package telemetry writes one aggregate point per finished job to a
// time-series backend, generalized from a per-device/per-ping writer
// into a per-job-summary writer.
package telemetry

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/fusioninventory/netdiscovery/internal/model"
)

// Config holds the InfluxDB connection settings the agent-local YAML
// config exposes under `telemetry.*`.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Writer is the Telemetry Sink: one WriteJobSummary call per completed
// job.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking

	mu        sync.Mutex
	lastWrite time.Time
}

// NewWriter connects to InfluxDB using cfg. The connection is established
// lazily by the client itself; no handshake happens here.
func NewWriter(cfg Config) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// WriteJobSummary writes one point per job. Rate-limited the same way a
// per-point writer would be; at one point per job this never actually
// throttles, but keeps a consistent write path.
func (w *Writer) WriteJobSummary(summary model.JobSummary) error {
	w.rateLimit()

	p := influxdb2.NewPointWithMeasurement("netdiscovery_job")
	p.AddTag("process_number", summary.ProcessNumber)
	p.AddField("address_count", summary.AddressCount)
	p.AddField("device_count", summary.DeviceCount)
	p.AddField("nmap_hits", summary.NmapHits)
	p.AddField("netbios_hits", summary.NetbiosHits)
	p.AddField("snmp_hits", summary.SNMPHits)
	p.AddField("duration_ms", summary.Duration().Milliseconds())
	p.SetTime(summary.Finished)

	return w.writeAPI.WritePoint(context.Background(), p)
}

// Close releases the underlying InfluxDB client.
func (w *Writer) Close() {
	w.client.Close()
}

// rateLimit enforces a minimum spacing between writes, mirroring the
// a prior per-point writer this was generalized from.
func (w *Writer) rateLimit() {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.lastWrite)
	const minSpacing = 10 * time.Millisecond
	if elapsed < minSpacing {
		time.Sleep(minSpacing - elapsed)
	}
	w.lastWrite = time.Now()
}
