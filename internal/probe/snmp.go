package probe

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/dictionary"
	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog/log"
)

const (
	oidSysDescr   = "1.3.6.1.2.1.1.1.0"
	oidSysName    = "1.3.6.1.2.1.1.5.0"
	oidBridgeMAC  = "1.3.6.1.2.1.17.1.1.0"
	oidIfPhysAddr = "1.3.6.1.2.1.2.2.1.6"
)

var dotRunsRe = regexp.MustCompile(`\.{2,}`)

// SNMPStage iterates server-supplied credentials against one address,
// classifying the first one that answers sysDescr against the
// dictionary.
type SNMPStage struct {
	Credentials []model.Credential
	Dico        *dictionary.Dictionary
	Refiners    []Refiner
	Port        uint16
	Timeout     time.Duration
	Retries     int
}

type snmpResult struct {
	Description  string
	SNMPHostname string
	Serial       string
	MAC          string
	ModelSNMP    string
	Type         string
	AuthSNMP     string
}

// Run tries each credential in order, connecting with the next one when
// the current one fails to connect. Once a credential connects but its
// sysDescr is absent, the address simply has nothing to offer over SNMP
// and the whole stage aborts rather than trying the remaining
// credentials.
func (s *SNMPStage) Run(ip string) (snmpResult, bool) {
	for _, cred := range s.Credentials {
		params, err := s.connect(ip, cred)
		if err != nil {
			log.Debug().Str("ip", ip).Str("credential", cred.ID).Err(err).Msg("snmp connect failed")
			continue
		}

		res, ok := s.classify(params, cred)
		params.Conn.Close()
		if !ok {
			return snmpResult{}, false
		}
		return res, true
	}
	return snmpResult{}, false
}

func (s *SNMPStage) connect(ip string, cred model.Credential) (*gosnmp.GoSNMP, error) {
	port := s.Port
	if port == 0 {
		port = 161
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	params := &gosnmp.GoSNMP{
		Target:  ip,
		Port:    port,
		Timeout: timeout,
		Retries: s.Retries,
	}

	switch cred.Version {
	case model.CredentialV1:
		params.Version = gosnmp.Version1
		params.Community = cred.Community
	case model.CredentialV3:
		params.Version = gosnmp.Version3
		params.SecurityModel = gosnmp.UserSecurityModel
		switch {
		case cred.AuthPassword != "" && cred.PrivPassword != "":
			params.MsgFlags = gosnmp.AuthPriv
		case cred.AuthPassword != "":
			params.MsgFlags = gosnmp.AuthNoPriv
		default:
			params.MsgFlags = gosnmp.NoAuthNoPriv
		}
		params.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   authProtocol(cred.AuthProtocol),
			AuthenticationPassphrase: cred.AuthPassword,
			PrivacyProtocol:          privProtocol(cred.PrivProtocol),
			PrivacyPassphrase:        cred.PrivPassword,
		}
	default: // "2c" and unset both behave as v2c
		params.Version = gosnmp.Version2c
		params.Community = cred.Community
	}

	if err := params.Connect(); err != nil {
		return nil, err
	}
	return params, nil
}

func authProtocol(name string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(name) {
	case "SHA":
		return gosnmp.SHA
	case "MD5":
		return gosnmp.MD5
	default:
		return gosnmp.NoAuth
	}
}

func privProtocol(name string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(name) {
	case "AES":
		return gosnmp.AES
	case "DES":
		return gosnmp.DES
	default:
		return gosnmp.NoPriv
	}
}

// classify fetches sysDescr/sysName, runs the refiner chain, consults the
// dictionary and, on a match, extracts serial and MAC per the matched
// Model's OIDs.
func (s *SNMPStage) classify(params *gosnmp.GoSNMP, cred model.Credential) (snmpResult, bool) {
	resp, err := snmpGetWithFallback(params, []string{oidSysDescr, oidSysName})
	if err != nil || len(resp.Variables) == 0 {
		return snmpResult{}, false
	}

	descr, err := snmpString(resp.Variables[0].Value)
	if err != nil || descr == "" {
		return snmpResult{}, false
	}
	descr = sanitize(descr)

	var hostname string
	if len(resp.Variables) > 1 {
		if h, err := snmpString(resp.Variables[1].Value); err == nil {
			hostname = sanitize(h)
		}
	}

	refined := applyRefiners(descr, s.Refiners)

	res := snmpResult{
		Description:  refined,
		SNMPHostname: hostname,
		AuthSNMP:     cred.ID,
	}

	if s.Dico == nil {
		return res, true
	}

	m, matched := s.Dico.Classify(refined)
	if !matched {
		return res, true
	}
	res.ModelSNMP = m.ModelSNMP
	res.Type = m.Type

	if m.Serial != "" {
		res.Serial = s.fetchSerial(params, m.Serial)
	}
	res.MAC = s.fetchMAC(params, m)

	return res, true
}

// fetchSerial gets a single OID and strips the line endings/whitespace
// and the runs of two or more separator dots SNMP agents commonly pad
// serial strings with.
func (s *SNMPStage) fetchSerial(params *gosnmp.GoSNMP, oid string) string {
	resp, err := params.Get([]string{oid})
	if err != nil || len(resp.Variables) == 0 {
		return ""
	}
	raw, err := snmpString(resp.Variables[0].Value)
	if err != nil {
		return ""
	}
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.ReplaceAll(raw, "\n", "")
	raw = sanitize(raw)
	return dotRunsRe.ReplaceAllString(raw, "")
}

// fetchMAC tries the model's primary MAC OID, falls back to walking its
// dynamic MAC subtree skipping zero MACs, and finally falls back to the
// well-known bridge/ifPhysAddress OIDs when the model names neither.
func (s *SNMPStage) fetchMAC(params *gosnmp.GoSNMP, m model.Model) string {
	if m.MAC != "" {
		if mac := s.fetchMACAt(params, m.MAC); mac != "" {
			return mac
		}
	}
	if m.MACDyn != "" {
		if mac := s.walkMACSubtree(params, m.MACDyn); mac != "" {
			return mac
		}
	}
	if m.MAC == "" && m.MACDyn == "" {
		if mac := s.fetchMACAt(params, oidBridgeMAC); mac != "" {
			return mac
		}
		if mac := s.walkMACSubtree(params, oidIfPhysAddr); mac != "" {
			return mac
		}
	}
	return ""
}

func (s *SNMPStage) fetchMACAt(params *gosnmp.GoSNMP, oid string) string {
	resp, err := params.Get([]string{oid})
	if err != nil || len(resp.Variables) == 0 {
		return ""
	}
	mac := macFromVariable(resp.Variables[0].Value)
	if mac == "" || isZeroMAC(mac) {
		return ""
	}
	return mac
}

// walkMACSubtree walks oid's subtree with GetNext, returning the first
// non-zero MAC found, skipping zero MACs reported for multi-port devices
// whose first interface entry is administratively down.
func (s *SNMPStage) walkMACSubtree(params *gosnmp.GoSNMP, oid string) string {
	current := oid
	for i := 0; i < 32; i++ {
		resp, err := params.GetNext([]string{current})
		if err != nil || len(resp.Variables) == 0 {
			return ""
		}
		v := resp.Variables[0]
		if !strings.HasPrefix(v.Name, oid) {
			return ""
		}
		if mac := macFromVariable(v.Value); mac != "" && !isZeroMAC(mac) {
			return mac
		}
		current = v.Name
	}
	return ""
}

// macFromVariable formats a raw SNMP octet-string MAC value into
// canonical lowercase colon-separated form.
func macFromVariable(value any) string {
	raw, ok := value.([]byte)
	if !ok || len(raw) != 6 {
		return ""
	}
	return strings.ToLower(fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		raw[0], raw[1], raw[2], raw[3], raw[4], raw[5]))
}

// snmpGetWithFallback applies the usual Get-then-GetNext pattern:
// agents that don't implement the exact .0 instance often still resolve
// via the next OID in the tree.
func snmpGetWithFallback(params *gosnmp.GoSNMP, oids []string) (*gosnmp.SnmpPacket, error) {
	resp, err := params.Get(oids)
	if err == nil {
		for _, v := range resp.Variables {
			if v.Type != gosnmp.NoSuchInstance && v.Type != gosnmp.NoSuchObject {
				return resp, nil
			}
		}
	}

	baseOIDs := make([]string, len(oids))
	for i, oid := range oids {
		if strings.HasSuffix(oid, ".0") {
			baseOIDs[i] = oid[:len(oid)-2]
		} else {
			baseOIDs[i] = oid
		}
	}

	variables := make([]gosnmp.SnmpPDU, 0, len(baseOIDs))
	for _, base := range baseOIDs {
		resp, err := params.GetNext([]string{base})
		if err != nil || len(resp.Variables) == 0 {
			continue
		}
		if strings.HasPrefix(resp.Variables[0].Name, base) {
			variables = append(variables, resp.Variables[0])
		}
	}
	if len(variables) == 0 {
		return nil, fmt.Errorf("no valid SNMP data retrieved")
	}
	return &gosnmp.SnmpPacket{Variables: variables}, nil
}

func snmpString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unexpected snmp value type %T", value)
	}
}
