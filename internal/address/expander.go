// Package address expands inclusive IPv4 Range records into a flat
// ordered sequence of AddressItems, lexicographically by IPv4 arithmetic.
package address

import (
	"net"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/rs/zerolog/log"
)

// Expand converts ranges into AddressItems. A range missing either
// endpoint, or with an unparsable endpoint, is skipped silently at debug
// level. Overlapping ranges are not deduplicated: duplicates flow through
// and are probed independently.
func Expand(ranges []model.Range) []model.AddressItem {
	var out []model.AddressItem
	for _, r := range ranges {
		if r.Start == "" || r.End == "" {
			log.Debug().Interface("range", r).Msg("skipping range with missing endpoint")
			continue
		}
		start := net.ParseIP(r.Start).To4()
		end := net.ParseIP(r.End).To4()
		if start == nil || end == nil {
			log.Debug().Str("start", r.Start).Str("end", r.End).Msg("skipping range with non-IPv4 endpoint")
			continue
		}
		if compareIPv4(start, end) > 0 {
			log.Debug().Str("start", r.Start).Str("end", r.End).Msg("skipping range with start after end")
			continue
		}
		ip := cloneIP(start)
		for {
			out = append(out, model.AddressItem{IP: ip.String(), Entity: r.Entity})
			if compareIPv4(ip, end) == 0 {
				break
			}
			incIPv4(ip)
		}
	}
	return out
}

func cloneIP(ip net.IP) net.IP {
	c := make(net.IP, len(ip))
	copy(c, ip)
	return c
}

func compareIPv4(a, b net.IP) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func incIPv4(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}
