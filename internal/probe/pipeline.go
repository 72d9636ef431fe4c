package probe

import (
	"context"
	"strings"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Pipeline fuses the nmap, NetBIOS and SNMP stages into one Device per
// address. It implements workerpool.Prober.
type Pipeline struct {
	Nmap     *NmapStage
	Netbios  *NetbiosStage
	SNMP     *SNMPStage
	Precheck *ICMPPrecheck

	// Limiter paces probe attempts across every worker sharing this
	// Pipeline, the same token-bucket throttle applied per probe
	// operation rather than per worker.
	Limiter *rate.Limiter

	NmapEnabled    bool
	NetbiosEnabled bool
	SNMPEnabled    bool
}

// NewPipeline builds a Pipeline from detected Capabilities, wiring only
// the stages the job actually has available.
func NewPipeline(caps model.Capabilities, nmapPath string, netbios *NetbiosStage, snmp *SNMPStage) *Pipeline {
	p := &Pipeline{
		Netbios:        netbios,
		SNMP:           snmp,
		Precheck:       &ICMPPrecheck{},
		NmapEnabled:    caps.NmapAvailable,
		NetbiosEnabled: caps.NetbiosAvailable,
		SNMPEnabled:    caps.SNMPAvailable,
	}
	if caps.NmapAvailable {
		if nmapPath == "" {
			nmapPath = "nmap"
		}
		p.Nmap = &NmapStage{Path: nmapPath, Version: caps.NmapVersion}
	}
	return p
}

// Probe runs the enabled stages in order for one address and fuses their
// fields into a Device, applying the acceptance predicate before
// returning.
func (p *Pipeline) Probe(item model.AddressItem) (model.Device, bool) {
	dev := model.Device{IP: item.IP, Entity: item.Entity}

	if p.Limiter != nil {
		if err := p.Limiter.Wait(context.Background()); err != nil {
			log.Debug().Str("ip", item.IP).Err(err).Msg("probe rate limiter wait cancelled")
			return dev, false
		}
	}

	ranNmap := false
	if p.NmapEnabled && p.Nmap != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		res, ok := p.Nmap.Run(ctx, item.IP)
		cancel()
		if ok {
			ranNmap = true
			dev.MAC = res.MAC
			dev.NetportVendor = res.NetportVendor
			dev.DNSHostname = res.DNSHostname
		}
	}

	// When the nmap stage produced no result for this address, a single ICMP echo
	// is logged as a hint; when nmap did run, its own reachability signal
	// already covers this and a second echo would be redundant. A
	// negative result does not reject the address by itself — a host
	// that blocks ICMP echo can still answer NetBIOS or SNMP, so those
	// stages still run.
	if !ranNmap && p.Precheck != nil {
		if !p.Precheck.Reachable(item.IP) {
			log.Debug().Str("ip", item.IP).Msg("icmp precheck unreachable, continuing with remaining probe stages")
		}
	}

	if p.NetbiosEnabled && p.Netbios != nil {
		if res, ok := p.Netbios.Query(item.IP); ok {
			if dev.MAC == "" {
				dev.MAC = res.MAC
			}
			dev.NetbiosName = res.NetbiosName
			dev.Workgroup = res.Workgroup
			dev.UserSession = res.UserSession
		}
	}

	if p.SNMPEnabled && p.SNMP != nil {
		if res, ok := p.SNMP.Run(item.IP); ok {
			dev.Description = res.Description
			dev.SNMPHostname = res.SNMPHostname
			dev.Serial = res.Serial
			dev.ModelSNMP = res.ModelSNMP
			dev.Type = res.Type
			dev.AuthSNMP = res.AuthSNMP
			if dev.MAC == "" {
				dev.MAC = res.MAC
			}
		}
	}

	dev.MAC = strings.ToLower(dev.MAC)
	if dev.MAC != "" && !isCanonicalMAC(dev.MAC) {
		dev.MAC = ""
	}

	if !dev.Accepted() {
		return dev, false
	}
	return dev, true
}
