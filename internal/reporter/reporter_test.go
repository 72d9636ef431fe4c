package reporter

import (
	"testing"

	"github.com/fusioninventory/netdiscovery/internal/model"
)

type recordingClient struct {
	sent []Envelope
}

func (c *recordingClient) Send(e Envelope) error {
	c.sent = append(c.sent, e)
	return nil
}

func TestStartThenEndOrdering(t *testing.T) {
	client := &recordingClient{}
	a := &Adapter{Client: client, AgentVersion: "1.0", ModuleVersion: "1.0"}

	a.Start("200")
	a.End("200")

	if len(client.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.sent))
	}
	if _, ok := client.sent[0].Content.(startMessage); !ok {
		t.Fatalf("expected first message to be start, got %T", client.sent[0].Content)
	}
	if _, ok := client.sent[1].Content.(endMessage); !ok {
		t.Fatalf("expected last message to be end, got %T", client.sent[1].Content)
	}
}

func TestBlockAnnounceSentEvenForEmptyBlock(t *testing.T) {
	client := &recordingClient{}
	a := &Adapter{Client: client, ModuleVersion: "1.0"}

	a.BlockAnnounce("200", 0)

	if len(client.sent) != 1 {
		t.Fatalf("expected the NBIP message to be sent unconditionally")
	}
	msg := client.sent[0].Content.(blockMessage)
	if msg.Agent.NBIP != 0 {
		t.Fatalf("expected NBIP 0, got %d", msg.Agent.NBIP)
	}
}

func TestDeviceBatchCarriesEnvelope(t *testing.T) {
	client := &recordingClient{}
	a := &Adapter{Client: client, ModuleVersion: "1.0"}

	batch := model.Batch{
		Devices:       []model.Device{{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:ff"}},
		ModuleVersion: "1.0",
		ProcessNumber: "200",
	}
	a.DeviceBatch(batch)

	if client.sent[0].Query != "NETDISCOVERY" {
		t.Fatalf("expected QUERY envelope tag, got %q", client.sent[0].Query)
	}
	msg := client.sent[0].Content.(deviceMessage)
	if len(msg.Devices) != 1 || msg.Devices[0].IP != "10.0.0.1" {
		t.Fatalf("unexpected device payload: %+v", msg.Devices)
	}
}

func TestDictionaryRefreshIncludesDicoRequest(t *testing.T) {
	client := &recordingClient{}
	a := &Adapter{Client: client, ModuleVersion: "1.0"}

	a.DictionaryRefresh("200")

	msg := client.sent[0].Content.(dictionaryRefreshMessage)
	if msg.Dico != "REQUEST" {
		t.Fatalf("expected DICO:REQUEST, got %q", msg.Dico)
	}
}

func TestNilClientIsANoop(t *testing.T) {
	a := &Adapter{}
	a.Start("200") // must not panic with no client wired
}
