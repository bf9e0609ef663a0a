package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Probe targets. A UDP "connect" picks the route without sending anything.
const (
	IPv4Probe = "1.1.1.1:80"
	IPv6Probe = "[2606:4700:4700::1111]:80"
)

var ErrNoLocalAddress = errors.New("could not determine a local address")

// AddressSet is a fixed snapshot of the host's own addresses.
type AddressSet struct {
	addrs map[netip.Addr]struct{}
}

// NewAddressSet creates a set from addrs. IPv4-mapped IPv6 addresses are
// stored unmapped and invalid addresses are skipped.
func NewAddressSet(addrs ...netip.Addr) AddressSet {
	s := AddressSet{addrs: make(map[netip.Addr]struct{}, len(addrs))}
	for _, a := range addrs {
		if a.IsValid() {
			s.addrs[a.Unmap()] = struct{}{}
		}
	}
	return s
}

// Contains reports whether a is one of the local addresses.
func (s AddressSet) Contains(a netip.Addr) bool {
	_, ok := s.addrs[a.Unmap()]
	return ok
}

// Len returns the number of addresses in the set.
func (s AddressSet) Len() int {
	return len(s.addrs)
}

// Addrs returns the members in sorted order.
func (s AddressSet) Addrs() []netip.Addr {
	out := make([]netip.Addr, 0, len(s.addrs))
	for a := range s.addrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Resolver finds the addresses the host uses on its default routes.
type Resolver struct {
	Dial      DialFunc
	IPv4Probe string
	IPv6Probe string
	Logger    *zerolog.Logger
}

// ResolveLocalAddresses runs the default resolver.
func ResolveLocalAddresses(ctx context.Context) (AddressSet, error) {
	return Resolver{}.Resolve(ctx)
}

// Resolve probes each address family once. A family without a route is
// skipped; having none at all is an error.
func (r Resolver) Resolve(ctx context.Context) (AddressSet, error) {
	dial := r.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	logger := log.Logger
	if r.Logger != nil {
		logger = *r.Logger
	}

	probes := []struct{ network, target string }{
		{"udp4", orDefault(r.IPv4Probe, IPv4Probe)},
		{"udp6", orDefault(r.IPv6Probe, IPv6Probe)},
	}

	var addrs []netip.Addr
	var errs []error
	for _, p := range probes {
		addr, err := localAddr(ctx, dial, p.network, p.target)
		if err != nil {
			logger.Debug().Err(err).Str("network", p.network).Msg("no local address for family")
			errs = append(errs, err)
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return AddressSet{}, fmt.Errorf("%w: %w", ErrNoLocalAddress, errors.Join(errs...))
	}
	return NewAddressSet(addrs...), nil
}

func localAddr(ctx context.Context, dial DialFunc, network, target string) (netip.Addr, error) {
	conn, err := dial(ctx, network, target)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dial %s %s: %w", network, target, err)
	}
	defer conn.Close()

	ap, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse local address %q: %w", conn.LocalAddr(), err)
	}
	return ap.Addr().WithZone("").Unmap(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
