package probe

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// NetbiosStage issues a NetBIOS Name Service node-status query (RFC 1002
// §4.2.18) against UDP/137, talking the wire protocol directly over
// net.UDPConn — the same raw-socket idiom ICMPPrecheck uses for ping.
type NetbiosStage struct {
	Timeout time.Duration
}

type netbiosResult struct {
	NetbiosName string
	Workgroup   string
	UserSession string
	MAC         string
}

const (
	nbstatSuffixWorkstation = 0x00
	nbstatSuffixUser        = 0x03

	nbNameFlagGroup = 0x8000
)

// Query sends one NBSTAT request to ip and decodes the node-status
// response.
func (n *NetbiosStage) Query(ip string) (netbiosResult, bool) {
	timeout := n.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	conn, err := net.Dial("udp", net.JoinHostPort(ip, "137"))
	if err != nil {
		return netbiosResult{}, false
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return netbiosResult{}, false
	}

	if _, err := conn.Write(buildNBStatQuery()); err != nil {
		return netbiosResult{}, false
	}

	buf := make([]byte, 1024)
	nRead, err := conn.Read(buf)
	if err != nil {
		return netbiosResult{}, false
	}

	res, ok := parseNBStatResponse(buf[:nRead])
	return res, ok
}

// buildNBStatQuery builds a node-status request for the wildcard name
// "*", the conventional broadcast-style NBSTAT query every nbtscan-style
// tool sends.
func buildNBStatQuery() []byte {
	var pkt []byte

	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], 0x1337) // transaction id
	header[2], header[3] = 0x00, 0x00                // flags: standard query
	binary.BigEndian.PutUint16(header[4:6], 1)       // qdcount
	pkt = append(pkt, header...)

	pkt = append(pkt, encodeNBName("*")...)
	pkt = append(pkt, 0x00, 0x21) // qtype NBSTAT
	pkt = append(pkt, 0x00, 0x01) // qclass IN

	return pkt
}

// encodeNBName applies NetBIOS first-level encoding: the name is padded
// to 16 bytes (15 chars + the 0x00 workstation suffix; the wildcard "*"
// is padded with 0x00 rather than spaces), then each byte is split into
// two nibbles mapped into 'A'..'P'.
func encodeNBName(name string) []byte {
	pad := byte(' ')
	if name == "*" {
		pad = 0x00
	}
	padded := make([]byte, 16)
	for i := 0; i < 15; i++ {
		padded[i] = pad
	}
	copy(padded, strings.ToUpper(name))

	encoded := make([]byte, 1+32+1)
	encoded[0] = 32
	for i, b := range padded {
		encoded[1+i*2] = 'A' + (b >> 4)
		encoded[1+i*2+1] = 'A' + (b & 0x0f)
	}
	encoded[len(encoded)-1] = 0x00
	return encoded
}

// parseNBStatResponse decodes the answer resource record of an NBSTAT
// reply: a name count byte, that many 18-byte name entries, then a
// 6-byte MAC address (RFC 1002 §4.2.18).
func parseNBStatResponse(data []byte) (netbiosResult, bool) {
	// header(12) + question name + qtype/qclass(4), then answer RR name +
	// type(2) + class(2) + ttl(4) + rdlength(2) before the payload.
	offset := 12
	offset, ok := skipName(data, offset)
	if !ok {
		return netbiosResult{}, false
	}
	offset += 4 // qtype + qclass of the echoed question

	offset, ok = skipName(data, offset)
	if !ok {
		return netbiosResult{}, false
	}
	if offset+10 > len(data) {
		return netbiosResult{}, false
	}
	offset += 2 + 2 + 4 // type, class, ttl
	rdlength := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	if offset+int(rdlength) > len(data) {
		return netbiosResult{}, false
	}

	if offset >= len(data) {
		return netbiosResult{}, false
	}
	numNames := int(data[offset])
	offset++

	var res netbiosResult
	for i := 0; i < numNames; i++ {
		if offset+18 > len(data) {
			return res, res != (netbiosResult{})
		}
		entry := data[offset : offset+18]
		rawName := strings.TrimRight(string(entry[0:15]), " ")
		suffix := entry[15]
		flags := binary.BigEndian.Uint16(entry[16:18])
		isGroup := flags&nbNameFlagGroup != 0

		switch {
		case suffix == nbstatSuffixWorkstation && isGroup:
			res.Workgroup = sanitize(rawName)
		case suffix == nbstatSuffixUser && !isGroup:
			res.UserSession = sanitize(rawName)
		case suffix == nbstatSuffixWorkstation && !isGroup:
			if !strings.HasPrefix(rawName, "IS~") {
				res.NetbiosName = sanitize(rawName)
			}
		}
		offset += 18
	}

	if offset+6 <= len(data) {
		mac := data[offset : offset+6]
		res.MAC = strings.ToLower(fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
			mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]))
		if isZeroMAC(res.MAC) {
			res.MAC = ""
		}
	}

	ok = res.NetbiosName != "" || res.Workgroup != "" || res.UserSession != "" || res.MAC != ""
	return res, ok
}

// skipName advances past a DNS-style name field starting at offset,
// handling the single compression pointer nbtstat responses use for the
// echoed question name.
func skipName(data []byte, offset int) (int, bool) {
	if offset >= len(data) {
		return 0, false
	}
	if data[offset]&0xc0 == 0xc0 {
		return offset + 2, true
	}
	for offset < len(data) {
		length := int(data[offset])
		if length == 0 {
			return offset + 1, true
		}
		offset += 1 + length
	}
	return 0, false
}
