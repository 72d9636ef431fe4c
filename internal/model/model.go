// Package model holds the data types shared across the discovery core:
// the address expansion, the dictionary, the spool, the worker pool and
// the coordinator all operate on these types rather than on each other's
// internals.
package model

import (
	"fmt"
	"time"
)

// DevicePerMessage bounds how many Devices a single Batch carries.
const DevicePerMessage = 4

// AddressPerThread is the number of addresses handed to each worker per
// block cycle; BlockSize = threads * AddressPerThread.
const AddressPerThread = 25

// Range is an inclusive IPv4 address range supplied by the server, scoped
// to an opaque entity tag. Read-only after job start.
type Range struct {
	Start  string
	End    string
	Entity string
}

// AddressItem is a single address derived 1:1 from expanding a Range.
type AddressItem struct {
	IP     string
	Entity string
}

// CredentialVersion enumerates the supported SNMP protocol versions.
type CredentialVersion string

const (
	CredentialV1  CredentialVersion = "1"
	CredentialV2c CredentialVersion = "2c"
	CredentialV3  CredentialVersion = "3"
)

// Credential is one SNMP credential supplied by the server. Version
// selects which of the remaining fields apply: v1/v2c use Community;
// v3 uses the Username/Auth*/Priv* fields.
type Credential struct {
	ID            string
	Version       CredentialVersion
	Community     string
	Username      string
	AuthPassword  string
	AuthProtocol  string
	PrivPassword  string
	PrivProtocol  string
}

// Model is an entry in the Dictionary: it binds a system-description
// pattern to the OIDs needed to classify and enrich a device.
type Model struct {
	ModelSNMP string
	Type      string
	Serial    string // OID, may be empty
	MAC       string // OID, may be empty
	MACDyn    string // OID subtree, may be empty
}

// Device is the fused record the Probe Pipeline produces for one address.
type Device struct {
	IP            string
	Entity        string
	MAC           string
	DNSHostname   string
	NetbiosName   string
	Workgroup     string
	UserSession   string
	Description   string
	SNMPHostname  string
	Serial        string
	ModelSNMP     string
	Type          string
	NetportVendor string
	AuthSNMP      string
}

// Accepted reports whether the device satisfies the acceptance predicate:
// at least one of MAC, DNSHostname, NetbiosName must be non-empty.
func (d Device) Accepted() bool {
	return d.MAC != "" || d.DNSHostname != "" || d.NetbiosName != ""
}

// Batch is a bounded group of accepted Devices flushed together to the
// Spool and, later, to the server.
type Batch struct {
	Devices       []Device
	ModuleVersion string
	ProcessNumber string
}

// Capabilities records which probe mechanisms are usable for this job, as
// detected once by the Coordinator before workers start.
type Capabilities struct {
	NmapAvailable    bool
	NmapVersion      string
	NetbiosAvailable bool
	SNMPAvailable    bool
}

// AnyAvailable reports whether at least one probe mechanism can run.
func (c Capabilities) AnyAvailable() bool {
	return c.NmapAvailable || c.NetbiosAvailable || c.SNMPAvailable
}

// JobSummary aggregates one job's outcome for the telemetry sink and the
// health surface. It is never sent to the server.
type JobSummary struct {
	ProcessNumber string
	AddressCount  int
	DeviceCount   int
	NmapHits      int
	NetbiosHits   int
	SNMPHits      int
	Started       time.Time
	Finished      time.Time
}

// Duration returns how long the job ran.
func (s JobSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// ProcessNumber computes the job identifier day-of-year+hour+minute,
// zero-padded to 3+2+2 digits, stable for the life of the job.
func ProcessNumber(at time.Time) string {
	return fmt.Sprintf("%03d%02d%02d", at.YearDay(), at.Hour(), at.Minute())
}
