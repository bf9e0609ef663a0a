package capture

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4Frame(t *testing.T, src, dst string, transport gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
		Protocol: layers.IPProtocolTCP,
	}
	switch tl := transport.(type) {
	case *layers.TCP:
		require.NoError(t, tl.SetNetworkLayerForChecksum(ip))
	case *layers.UDP:
		ip.Protocol = layers.IPProtocolUDP
		require.NoError(t, tl.SetNetworkLayerForChecksum(ip))
	case *layers.ICMPv4:
		ip.Protocol = layers.IPProtocolICMPv4
	}
	return serialize(t, eth, ip, transport, gopacket.Payload([]byte("sharkemon")))
}

func ipv6Frame(t *testing.T, src, dst string, transport gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
		NextHeader: layers.IPProtocolTCP,
	}
	switch tl := transport.(type) {
	case *layers.TCP:
		require.NoError(t, tl.SetNetworkLayerForChecksum(ip))
	case *layers.UDP:
		ip.NextHeader = layers.IPProtocolUDP
		require.NoError(t, tl.SetNetworkLayerForChecksum(ip))
	}
	return serialize(t, eth, ip, transport, gopacket.Payload([]byte("sharkemon")))
}

func tcpFrame(t *testing.T, src string, srcPort uint16, dst string, dstPort uint16) []byte {
	return ipv4Frame(t, src, dst, &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024})
}

func udpFrame(t *testing.T, src string, srcPort uint16, dst string, dstPort uint16) []byte {
	return ipv4Frame(t, src, dst, &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)})
}

func icmpFrame(t *testing.T, src, dst string) []byte {
	return ipv4Frame(t, src, dst, &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1})
}

func arpFrame(t *testing.T) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte{192, 168, 1, 10},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{192, 168, 1, 1},
	}
	return serialize(t, eth, arp)
}

// truncatedTCPFrame claims a TCP payload but carries only a few bytes of it.
func truncatedTCPFrame(t *testing.T) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
		Protocol: layers.IPProtocolTCP,
	}
	return serialize(t, eth, ip, gopacket.Payload([]byte{0x01, 0xbb, 0x00}))
}

type readResult struct {
	data []byte
	err  error
}

// fakeHandle replays scripted reads. Once the script is exhausted it either
// reports io.EOF or, with block set, waits until closed.
type fakeHandle struct {
	mu     sync.Mutex
	script []readResult
	block  bool

	closeOnce sync.Once
	closedCh  chan struct{}
	closes    atomic.Int32
}

func newFakeHandle(frames ...[]byte) *fakeHandle {
	h := &fakeHandle{closedCh: make(chan struct{})}
	for _, f := range frames {
		h.script = append(h.script, readResult{data: f})
	}
	return h
}

func (h *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	select {
	case <-h.closedCh:
		return nil, gopacket.CaptureInfo{}, io.EOF
	default:
	}

	h.mu.Lock()
	if len(h.script) > 0 {
		next := h.script[0]
		h.script = h.script[1:]
		h.mu.Unlock()
		ci := gopacket.CaptureInfo{CaptureLength: len(next.data), Length: len(next.data)}
		return next.data, ci, next.err
	}
	h.mu.Unlock()

	if h.block {
		<-h.closedCh
	}
	return nil, gopacket.CaptureInfo{}, io.EOF
}

// LinkType panics once closed, as pcap does on a released handle.
func (h *fakeHandle) LinkType() layers.LinkType {
	if h.isClosed() {
		panic("LinkType on closed handle")
	}
	return layers.LinkTypeEthernet
}

func (h *fakeHandle) Close() {
	h.closes.Add(1)
	h.closeOnce.Do(func() { close(h.closedCh) })
}

func (h *fakeHandle) isClosed() bool {
	select {
	case <-h.closedCh:
		return true
	default:
		return false
	}
}
