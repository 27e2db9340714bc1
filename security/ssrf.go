// Package security provides the SSRF-safe HTTP client shared by the
// Context Enricher's PublicKnowledge source and the Sandbox's
// http.request tool (§4.2, §4.6).
package security

import "net"

// cgnat, v6unique, and v6link cover reserved ranges net.IP's own
// IsPrivate/IsLinkLocal* methods don't classify.
var (
	cgnat    *net.IPNet
	v6unique *net.IPNet
	v6link   *net.IPNet
)

func init() {
	var err error
	_, cgnat, err = net.ParseCIDR("100.64.0.0/10")
	if err != nil {
		panic("invalid CGNAT CIDR: " + err.Error())
	}
	_, v6unique, err = net.ParseCIDR("fc00::/7")
	if err != nil {
		panic("invalid IPv6 unique local CIDR: " + err.Error())
	}
	_, v6link, err = net.ParseCIDR("fe80::/10")
	if err != nil {
		panic("invalid IPv6 link-local CIDR: " + err.Error())
	}
}

// IsPrivateIP reports whether ip falls in a loopback, private, link-local,
// carrier-grade-NAT, or IPv6 unique-local/link-local range.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return true
		}
	}
	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}
