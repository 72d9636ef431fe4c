package coordinator

import (
	"testing"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/fusioninventory/netdiscovery/internal/reporter"
	"github.com/fusioninventory/netdiscovery/internal/spool"
)

type recordingClient struct {
	sent []reporter.Envelope
}

func (c *recordingClient) Send(e reporter.Envelope) error {
	c.sent = append(c.sent, e)
	return nil
}

func fastConfig(threads int) Config {
	return Config{
		Threads:          threads,
		ModuleVersion:    "1.0",
		AgentVersion:     "1.0",
		StartupBatchSize: 4,
		StartupPause:     time.Millisecond,
		CyclePoll:        time.Millisecond,
		SendPause:        time.Millisecond,
	}
}

// TestEmptyJobSendsOnlyStartAndEnd exercises the empty-job scenario: no
// ranges means no addresses, so only Start and End should go out.
func TestEmptyJobSendsOnlyStartAndEnd(t *testing.T) {
	sp, err := spool.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	client := &recordingClient{}
	c := &Coordinator{
		Config:   fastConfig(2),
		Spool:    sp,
		Reporter: &reporter.Adapter{Client: client, ModuleVersion: "1.0", AgentVersion: "1.0"},
	}

	summary := c.Run(JobOptions{})

	if len(client.sent) != 2 {
		t.Fatalf("expected exactly START and END for an empty job, got %d messages", len(client.sent))
	}
	if summary.AddressCount != 0 || summary.DeviceCount != 0 {
		t.Fatalf("expected an empty job summary, got %+v", summary)
	}
}

// fakeTelemetry records the last JobSummary handed to it.
type fakeTelemetry struct {
	last model.JobSummary
	n    int
}

func (f *fakeTelemetry) WriteJobSummary(s model.JobSummary) error {
	f.last = s
	f.n++
	return nil
}

func TestJobSummaryReachesTelemetryAfterEnd(t *testing.T) {
	sp, _ := spool.Open(t.TempDir())
	client := &recordingClient{}
	tel := &fakeTelemetry{}
	c := &Coordinator{
		Config:   fastConfig(1),
		Spool:    sp,
		Reporter: &reporter.Adapter{Client: client, ModuleVersion: "1.0"},
		Telemetry: tel,
	}

	c.Run(JobOptions{})

	if tel.n != 1 {
		t.Fatalf("expected exactly one telemetry write, got %d", tel.n)
	}
	if tel.last.ProcessNumber == "" {
		t.Fatalf("expected a populated process number in the summary")
	}
}

func TestDictionaryMismatchAbortsWithRefreshAndEnd(t *testing.T) {
	sp, _ := spool.Open(t.TempDir())
	client := &recordingClient{}
	c := &Coordinator{
		Config:   fastConfig(1),
		Spool:    sp,
		Reporter: &reporter.Adapter{Client: client, ModuleVersion: "1.0"},
	}

	c.Run(JobOptions{DicoHash: "not-the-real-hash"})

	if len(client.sent) != 1 {
		t.Fatalf("expected exactly one outbound message (refresh+end combined), got %d", len(client.sent))
	}
}
