package capture

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"sharkemon/internal/models"
)

var decodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

// Decode wraps raw frame bytes in a lazily decoded gopacket.Packet.
func Decode(data []byte, linkType layers.LinkType, ci gopacket.CaptureInfo) gopacket.Packet {
	pkt := gopacket.NewPacket(data, linkType, decodeOptions)
	md := pkt.Metadata()
	md.CaptureInfo = ci
	return pkt
}

// Normalize turns a decoded frame into a SimplePacket. Frames that are not
// IPv4/IPv6 carrying TCP/UDP report ok=false with no error. An error is
// returned only for frames gopacket failed to decode before the IP or
// transport layer could be read.
func Normalize(pkt gopacket.Packet, local AddressSet) (sp models.SimplePacket, ok bool, err error) {
	var src, dst net.IP
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		sp.IPProtocol = models.IPv4
		src, dst = ip.SrcIP, ip.DstIP
	case *layers.IPv6:
		sp.IPProtocol = models.IPv6
		src, dst = ip.SrcIP, ip.DstIP
	default:
		return sp, false, decodeError(pkt)
	}

	switch tl := pkt.TransportLayer().(type) {
	case *layers.TCP:
		sp.TransportProtocol = models.TCP
		sp.SrcPort, sp.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
	case *layers.UDP:
		sp.TransportProtocol = models.UDP
		sp.SrcPort, sp.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
	default:
		return sp, false, decodeError(pkt)
	}

	var srcOK, dstOK bool
	sp.SrcIP, srcOK = netip.AddrFromSlice(src)
	sp.DstIP, dstOK = netip.AddrFromSlice(dst)
	if !srcOK || !dstOK {
		return models.SimplePacket{}, false, fmt.Errorf("bad ip address length (src %d, dst %d bytes)", len(src), len(dst))
	}
	sp.SrcIP, sp.DstIP = sp.SrcIP.Unmap(), sp.DstIP.Unmap()

	if local.Contains(sp.SrcIP) {
		sp.Direction = models.DirectionOut
	} else {
		sp.Direction = models.DirectionIn
	}
	return sp, true, nil
}

func decodeError(pkt gopacket.Packet) error {
	if el := pkt.ErrorLayer(); el != nil {
		return fmt.Errorf("decode %s: %w", el.LayerType(), el.Error())
	}
	return nil
}
