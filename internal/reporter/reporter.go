// Package reporter wraps outbound job messages in the NETDISCOVERY
// envelope and hands them to an OutboundClient.
package reporter

import (
	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire wrapper every outbound message is sent inside.
type Envelope struct {
	Query   string `msgpack:"QUERY"`
	Content any    `msgpack:"CONTENT"`
}

// OutboundClient is the external transport collaborator; its concrete
// implementation (XML/HTTP to the server) is out of scope for this core.
type OutboundClient interface {
	Send(envelope Envelope) error
}

// Adapter is the thin sender that builds and forwards each message.
type Adapter struct {
	Client        OutboundClient
	AgentVersion  string
	ModuleVersion string
}

func (a *Adapter) send(content any) {
	if a.Client == nil {
		return
	}
	if err := a.Client.Send(Envelope{Query: "NETDISCOVERY", Content: content}); err != nil {
		log.Error().Err(err).Msg("failed to send outbound message, continuing")
	}
}

type startMessage struct {
	Agent         agentStart `msgpack:"AGENT"`
	ModuleVersion string     `msgpack:"MODULEVERSION"`
	ProcessNumber string     `msgpack:"PROCESSNUMBER"`
}

type agentStart struct {
	Start        string `msgpack:"START"`
	AgentVersion string `msgpack:"AGENTVERSION"`
}

// Start sends the job-opening message. This must be the first message
// the Coordinator sends.
func (a *Adapter) Start(processNumber string) {
	a.send(startMessage{
		Agent:         agentStart{Start: "1", AgentVersion: a.AgentVersion},
		ModuleVersion: a.ModuleVersion,
		ProcessNumber: processNumber,
	})
}

type blockMessage struct {
	Agent         agentNBIP `msgpack:"AGENT"`
	ProcessNumber string    `msgpack:"PROCESSNUMBER"`
}

type agentNBIP struct {
	NBIP int `msgpack:"NBIP"`
}

// BlockAnnounce sends the per-cycle NBIP message, unconditionally, even
// for a zero-device block.
func (a *Adapter) BlockAnnounce(processNumber string, size int) {
	a.send(blockMessage{Agent: agentNBIP{NBIP: size}, ProcessNumber: processNumber})
}

type deviceMessage struct {
	Devices       []model.Device `msgpack:"DEVICE"`
	ModuleVersion string         `msgpack:"MODULEVERSION"`
	ProcessNumber string         `msgpack:"PROCESSNUMBER"`
}

// DeviceBatch sends one Batch. Never carries more than
// model.DevicePerMessage devices; this adapter trusts its caller to
// have already enforced that.
func (a *Adapter) DeviceBatch(batch model.Batch) {
	a.send(deviceMessage{
		Devices:       batch.Devices,
		ModuleVersion: batch.ModuleVersion,
		ProcessNumber: batch.ProcessNumber,
	})
}

type dictionaryRefreshMessage struct {
	Agent         agentEnd `msgpack:"AGENT"`
	ModuleVersion string   `msgpack:"MODULEVERSION"`
	ProcessNumber string   `msgpack:"PROCESSNUMBER"`
	Dico          string   `msgpack:"DICO"`
}

type agentEnd struct {
	End string `msgpack:"END"`
}

// DictionaryRefresh sends the refresh-request-plus-end message required
// on a dictionary hash mismatch.
func (a *Adapter) DictionaryRefresh(processNumber string) {
	a.send(dictionaryRefreshMessage{
		Agent:         agentEnd{End: "1"},
		ModuleVersion: a.ModuleVersion,
		ProcessNumber: processNumber,
		Dico:          "REQUEST",
	})
}

type endMessage struct {
	Agent         agentEnd `msgpack:"AGENT"`
	ModuleVersion string   `msgpack:"MODULEVERSION"`
	ProcessNumber string   `msgpack:"PROCESSNUMBER"`
}

// End sends the job-closing message. This must be the last message the
// Coordinator sends.
func (a *Adapter) End(processNumber string) {
	a.send(endMessage{
		Agent:         agentEnd{End: "1"},
		ModuleVersion: a.ModuleVersion,
		ProcessNumber: processNumber,
	})
}
