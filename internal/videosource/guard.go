package videosource

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// errBlockedAddress is returned when a client-supplied URL resolves to an
// address inside the service's own network.
var errBlockedAddress = errors.New("address is not publicly routable")

// sharedAddressSpace is carrier-grade NAT space, not covered by netip's IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !sharedAddressSpace.Contains(ip)
}

// refusePrivate is a net.Dialer Control hook. It runs after DNS resolution, so
// rebinding and redirects are checked against the address actually dialed.
func refusePrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddr(ip) {
		return errBlockedAddress
	}
	return nil
}

// guardedClient copies c with a transport that refuses non-public addresses.
// Clients with a custom RoundTripper are returned as is.
func guardedClient(c *http.Client) *http.Client {
	var base *http.Transport
	switch t := c.Transport.(type) {
	case nil:
		base, _ = http.DefaultTransport.(*http.Transport)
	case *http.Transport:
		base = t
	}
	if base == nil {
		return c
	}

	t := base.Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivate,
	}).DialContext
	guarded := *c
	guarded.Transport = t
	return &guarded
}

// hostAllowed matches u's host against the allow-list. Entries are exact host
// names, or a leading dot to allow a domain and its subdomains. An empty list
// allows every host.
func hostAllowed(allowed []string, u *url.URL) bool {
	if len(allowed) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			if host == a[1:] || strings.HasSuffix(host, a) {
				return true
			}
		case host == a:
			return true
		}
	}
	return false
}
