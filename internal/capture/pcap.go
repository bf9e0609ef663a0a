package capture

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Handle is the raw capture primitive. *pcap.Handle satisfies it.
type Handle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// Opener acquires a Handle for cfg.Interface.
type Opener func(cfg Config) (Handle, error)

// Config controls how the interface is opened.
type Config struct {
	Interface   string
	SnapLen     int32
	Promiscuous bool
	// ReadTimeout bounds each wait inside the capture library so Close is
	// noticed promptly. Callers still see a read that blocks until a frame
	// arrives or the session closes.
	ReadTimeout time.Duration
	BPFFilter   string
}

// DefaultConfig returns a full snap length, a 500ms read timeout and a
// TCP/UDP filter.
func DefaultConfig() Config {
	return Config{
		SnapLen:     65536,
		ReadTimeout: 500 * time.Millisecond,
		BPFFilter:   "tcp or udp",
	}
}

// OpenLive opens a pcap handle on a live interface.
func OpenLive(cfg Config) (Handle, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	handle, err := pcap.OpenLive(cfg.Interface, cfg.SnapLen, cfg.Promiscuous, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", cfg.Interface, err)
	}
	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("could not set BPF filter %q: %w", cfg.BPFFilter, err)
		}
	}
	return handle, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, pcap.NextErrorTimeoutExpired) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Interface is a capture-capable network interface.
type Interface struct {
	Name        string
	Description string
	Addresses   []netip.Addr
	Loopback    bool
}

// Active reports whether the interface has at least one address.
func (i Interface) Active() bool {
	return len(i.Addresses) > 0
}

const pcapIfLoopback = 0x1

// ListInterfaces enumerates capture devices, active non-loopback ones first.
func ListInterfaces() ([]Interface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("could not list interfaces: %w", err)
	}
	return orderInterfaces(devs), nil
}

// DefaultInterface picks the first active, non-loopback interface.
func DefaultInterface() (string, error) {
	ifaces, err := ListInterfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Active() && !iface.Loopback {
			return iface.Name, nil
		}
	}
	return "", errors.New("no active network interface found")
}

func orderInterfaces(devs []pcap.Interface) []Interface {
	out := make([]Interface, 0, len(devs))
	for _, dev := range devs {
		iface := Interface{
			Name:        dev.Name,
			Description: dev.Description,
			Loopback:    dev.Flags&pcapIfLoopback != 0,
		}
		for _, a := range dev.Addresses {
			if addr, ok := netip.AddrFromSlice(a.IP); ok {
				addr = addr.Unmap()
				iface.Addresses = append(iface.Addresses, addr)
				if addr.IsLoopback() {
					iface.Loopback = true
				}
			}
		}
		out = append(out, iface)
	}
	rank := func(i Interface) int {
		switch {
		case i.Active() && !i.Loopback:
			return 0
		case i.Active():
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
