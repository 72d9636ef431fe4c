package probe

import (
	"bytes"
	"context"
	"encoding/xml"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// NmapStage invokes nmap per host and parses its XML ping-scan output
// for the host's MAC, vendor, and hostname.
type NmapStage struct {
	Path    string
	Version string // as reported by `nmap --version`, empty if unknown
	Timeout time.Duration
}

// DetectNmap runs `nmap --version` and reports whether nmap is usable and
// which version it reports. A missing binary degrades this capability
// gracefully: the caller disables the stage rather than
// failing the job.
func DetectNmap(path string) (available bool, version string) {
	if path == "" {
		path = "nmap"
	}
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("nmap not available, disabling nmap probe stage")
		return false, ""
	}
	return true, parseNmapVersion(string(out))
}

var nmapVersionRe = regexp.MustCompile(`Nmap version (\d+)\.(\d+)`)

func parseNmapVersion(output string) string {
	m := nmapVersionRe.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}

// atLeast530 reports whether version (as "MAJOR.MINOR...") is >= 5.30.
func atLeast530(version string) bool {
	parts := strings.SplitN(version, ".", 2)
	if len(parts) == 0 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	if major > 5 {
		return true
	}
	if major < 5 {
		return false
	}
	if len(parts) < 2 {
		return false
	}
	minorDigits := parts[1]
	for i, c := range minorDigits {
		if c < '0' || c > '9' {
			minorDigits = minorDigits[:i]
			break
		}
	}
	minor, err := strconv.Atoi(minorDigits)
	if err != nil {
		return false
	}
	return minor >= 30
}

func nmapArgs(version string) []string {
	if atLeast530(version) {
		return []string{"-sP", "-PP", "--system-dns", "--max-retries", "1", "--max-rtt-timeout", "1000ms"}
	}
	return []string{"-sP", "--system-dns", "--max-retries", "1", "--max-rtt-timeout", "1000"}
}

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Hostnames nmapHostnames `xml:"hostnames"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
	Vendor   string `xml:"vendor,attr"`
}

type nmapHostnames struct {
	Hostname []nmapHostname `xml:"hostname"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
}

// nmapResult is the fused slice of fields the nmap stage can set.
type nmapResult struct {
	MAC           string
	NetportVendor string
	DNSHostname   string
}

// Run shells out to nmap for ip and parses the first host entry of its
// XML output. ok is false if nmap fails, times out, or reports nothing.
func (n *NmapStage) Run(ctx context.Context, ip string) (nmapResult, bool) {
	timeout := n.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(nmapArgs(n.Version), ip, "-oX", "-")
	cmd := exec.CommandContext(ctx, n.Path, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		log.Debug().Str("ip", ip).Err(err).Msg("nmap invocation failed")
		return nmapResult{}, false
	}

	var run nmapRun
	if err := xml.Unmarshal(stdout.Bytes(), &run); err != nil {
		log.Debug().Str("ip", ip).Err(err).Msg("failed to parse nmap XML output")
		return nmapResult{}, false
	}
	if len(run.Hosts) == 0 {
		return nmapResult{}, false
	}

	host := run.Hosts[0]
	var res nmapResult
	for _, addr := range host.Addresses {
		if addr.AddrType == "mac" && res.MAC == "" {
			res.MAC = addr.Addr
			res.NetportVendor = addr.Vendor
		}
	}
	if len(host.Hostnames.Hostname) > 0 {
		res.DNSHostname = host.Hostnames.Hostname[0].Name
	}

	if res.MAC == "" && res.NetportVendor == "" && res.DNSHostname == "" {
		return nmapResult{}, false
	}
	return res, true
}
