package models

import (
	"fmt"
	"net/netip"
)

// Direction tells whether a packet left or entered the local host.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// IPProtocol is the network layer a packet was carried on.
type IPProtocol uint8

const (
	IPv4 IPProtocol = iota
	IPv6
)

func (p IPProtocol) String() string {
	if p == IPv6 {
		return "IPv6"
	}
	return "IPv4"
}

// SimplePacket holds the direction-classified fields extracted from one
// captured frame. It is a value; nothing retains it after matching.
type SimplePacket struct {
	Direction         Direction
	IPProtocol        IPProtocol
	TransportProtocol TransportProtocol
	SrcIP             netip.Addr
	SrcPort           uint16
	DstIP             netip.Addr
	DstPort           uint16
}

// String formats the packet for log lines.
func (p SimplePacket) String() string {
	return fmt.Sprintf("%s %s %s %s -> %s",
		p.Direction, p.IPProtocol, p.TransportProtocol,
		netip.AddrPortFrom(p.SrcIP, p.SrcPort),
		netip.AddrPortFrom(p.DstIP, p.DstPort))
}

// FrameOutcome is what became of a single captured frame.
type FrameOutcome uint8

const (
	FrameClassified     FrameOutcome = iota // normalized and handed to the consumer
	FrameUnclassifiable                     // not IPv4/IPv6 + TCP/UDP, dropped silently
	FrameFailed                             // malformed frame or consumer failure
)

func (o FrameOutcome) String() string {
	switch o {
	case FrameClassified:
		return "classified"
	case FrameUnclassifiable:
		return "unclassifiable"
	default:
		return "failed"
	}
}
