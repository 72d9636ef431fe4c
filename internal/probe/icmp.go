package probe

import (
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPPrecheck is the reachability check the Pipeline runs when the nmap
// stage produced no result for an address: a single ICMP echo over a
// privileged socket, with a 2s timeout unless Timeout is set. The
// Pipeline only logs a negative result; it does not skip any stage.
type ICMPPrecheck struct {
	Timeout time.Duration
}

// Reachable sends one ICMP echo and reports whether a reply came back.
func (p *ICMPPrecheck) Reachable(ip string) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	if pinger.Timeout == 0 {
		pinger.Timeout = 2 * time.Second
	}
	pinger.SetPrivileged(true)
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
