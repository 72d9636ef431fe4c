package probe

import (
	"encoding/xml"
	"testing"
)

func TestParseNmapVersion(t *testing.T) {
	cases := map[string]string{
		"Nmap version 7.93 ( https://nmap.org )":  "7.93",
		"Nmap version 5.30BETA1":                  "5.30",
		"Nmap version 5.00":                       "5.00",
		"not nmap at all":                         "",
	}
	for in, want := range cases {
		if got := parseNmapVersion(in); got != want {
			t.Errorf("parseNmapVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAtLeast530(t *testing.T) {
	cases := map[string]bool{
		"7.93":  true,
		"5.30":  true,
		"5.40":  true,
		"5.29":  false,
		"5.00":  false,
		"4.90":  false,
		"6.00":  true,
		"":      false,
	}
	for in, want := range cases {
		if got := atLeast530(in); got != want {
			t.Errorf("atLeast530(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNmapArgsSelectsByVersion(t *testing.T) {
	newArgs := nmapArgs("7.93")
	if newArgs[1] != "-PP" {
		t.Fatalf("expected -PP for nmap >= 5.30, got %v", newArgs)
	}

	oldArgs := nmapArgs("5.00")
	for _, a := range oldArgs {
		if a == "-PP" {
			t.Fatalf("did not expect -PP for nmap < 5.30, got %v", oldArgs)
		}
	}
}

func TestParseNmapXML(t *testing.T) {
	const xmlOut = `<?xml version="1.0"?>
<nmaprun>
  <host>
    <address addr="10.0.0.5" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac" vendor="Acme Corp"/>
    <hostnames>
      <hostname name="device.example.com" type="PTR"/>
    </hostnames>
  </host>
</nmaprun>`

	var run nmapRun
	if err := xml.Unmarshal([]byte(xmlOut), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(run.Hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(run.Hosts))
	}
	host := run.Hosts[0]
	var mac, vendor string
	for _, a := range host.Addresses {
		if a.AddrType == "mac" {
			mac, vendor = a.Addr, a.Vendor
		}
	}
	if mac != "AA:BB:CC:DD:EE:FF" || vendor != "Acme Corp" {
		t.Fatalf("got mac=%q vendor=%q", mac, vendor)
	}
	if len(host.Hostnames.Hostname) != 1 || host.Hostnames.Hostname[0].Name != "device.example.com" {
		t.Fatalf("unexpected hostnames: %+v", host.Hostnames)
	}
}
