package main

import (
	"github.com/rs/zerolog/log"

	"github.com/fusioninventory/netdiscovery/internal/reporter"
)

// loggingClient stands in for the XML/HTTP transport to the server,
// which is out of scope for this core. It satisfies
// reporter.OutboundClient by logging every envelope, which is enough to
// exercise and observe the Reporter Adapter end to end.
type loggingClient struct{}

func (loggingClient) Send(envelope reporter.Envelope) error {
	log.Info().Str("query", envelope.Query).Interface("content", envelope.Content).Msg("outbound message")
	return nil
}
