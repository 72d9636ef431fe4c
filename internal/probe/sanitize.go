package probe

import "strings"

// sanitize trims a field and strips characters that have no business in
// a device record: control characters and anything non-printable-ASCII,
// the usual SNMP/Influx string validator shape. Each run of newlines,
// carriage returns and tabs collapses to a single space instead of being
// dropped outright so multi-line banners stay readable.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	inBreak := false
	for _, r := range s {
		switch r {
		case '\n', '\r', '\t':
			if !inBreak {
				b.WriteByte(' ')
			}
			inBreak = true
			continue
		}
		inBreak = false
		if r < 32 || r > 126 {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// isCanonicalMAC reports whether s matches the canonical lowercase
// xx:xx:xx:xx:xx:xx MAC form Device.MAC requires.
func isCanonicalMAC(s string) bool {
	if len(s) != 17 {
		return false
	}
	for i, c := range s {
		switch i % 3 {
		case 2:
			if c != ':' {
				return false
			}
		default:
			if !isHexDigit(byte(c)) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

func isZeroMAC(mac string) bool {
	return mac == "0:0:0:0:0:0" || mac == "00:00:00:00:00:00"
}
