package icsfeed

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// CheckFeedURL rejects feed URLs that could be used to reach internal
// infrastructure. Only http/https are allowed and every address the host
// resolves to must be a public unicast IP. The fetcher re-runs this check on
// each redirect hop.
func CheckFeedURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid feed url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("feed url scheme %q not allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("feed url has no host")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("feed host %q did not resolve: %w", host, err)
	}

	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return fmt.Errorf("feed host %q: %w", host, err)
		}
	}

	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("resolves to loopback address %s", ip)
	case ip.IsPrivate():
		return fmt.Errorf("resolves to private address %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("resolves to link-local address %s", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("resolves to unspecified address %s", ip)
	case ip.IsMulticast():
		return fmt.Errorf("resolves to multicast address %s", ip)
	case !ip.IsGlobalUnicast():
		return fmt.Errorf("resolves to reserved address %s", ip)
	}

	// Carrier-grade NAT range is not covered by IsPrivate.
	if cgn := (net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}); cgn.Contains(ip) {
		return fmt.Errorf("resolves to shared address space %s", ip)
	}

	return nil
}
