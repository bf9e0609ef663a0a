package capture

import (
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharkemon/internal/models"
)

var localSet = NewAddressSet(netip.MustParseAddr("192.168.1.10"), netip.MustParseAddr("2001:db8::10"))

func decodeFrame(data []byte) gopacket.Packet {
	return Decode(data, layers.LinkTypeEthernet, gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)})
}

func TestNormalizeOutboundTCP(t *testing.T) {
	sp, ok, err := Normalize(decodeFrame(tcpFrame(t, "192.168.1.10", 51000, "93.184.216.34", 443)), localSet)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, models.SimplePacket{
		Direction:         models.DirectionOut,
		IPProtocol:        models.IPv4,
		TransportProtocol: models.TCP,
		SrcIP:             netip.MustParseAddr("192.168.1.10"),
		SrcPort:           51000,
		DstIP:             netip.MustParseAddr("93.184.216.34"),
		DstPort:           443,
	}, sp)
}

func TestNormalizeInboundUDP(t *testing.T) {
	sp, ok, err := Normalize(decodeFrame(udpFrame(t, "8.8.8.8", 53, "192.168.1.10", 40000)), localSet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.DirectionIn, sp.Direction)
	assert.Equal(t, models.UDP, sp.TransportProtocol)
	assert.Equal(t, uint16(53), sp.SrcPort)
	assert.Equal(t, uint16(40000), sp.DstPort)
}

func TestNormalizeIPv6(t *testing.T) {
	frame := ipv6Frame(t, "2001:db8::10", "2001:db8::99", &layers.TCP{SrcPort: 50000, DstPort: 22, SYN: true})
	sp, ok, err := Normalize(decodeFrame(frame), localSet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.IPv6, sp.IPProtocol)
	assert.Equal(t, models.DirectionOut, sp.Direction)
	assert.Equal(t, netip.MustParseAddr("2001:db8::99"), sp.DstIP)
}

func TestNormalizeUnclassifiableFrames(t *testing.T) {
	for name, frame := range map[string][]byte{
		"icmp": icmpFrame(t, "192.168.1.10", "1.1.1.1"),
		"arp":  arpFrame(t),
	} {
		_, ok, err := Normalize(decodeFrame(frame), localSet)
		assert.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}

func TestNormalizeMalformedFrame(t *testing.T) {
	_, ok, err := Normalize(decodeFrame(truncatedTCPFrame(t)), localSet)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestAddressSetUnmapsIPv4(t *testing.T) {
	set := NewAddressSet(netip.MustParseAddr("::ffff:10.0.0.1"), netip.Addr{})
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Contains(netip.MustParseAddr("10.0.0.1")))
	assert.True(t, set.Contains(netip.MustParseAddr("::ffff:10.0.0.1")))
	assert.False(t, set.Contains(netip.MustParseAddr("10.0.0.2")))
}
