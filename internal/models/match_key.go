package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TransportProtocol is the transport layer of a classified packet.
type TransportProtocol uint8

const (
	TCP TransportProtocol = iota + 1
	UDP
)

func (t TransportProtocol) String() string {
	switch t {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return fmt.Sprintf("TransportProtocol(%d)", uint8(t))
	}
}

// ParseTransportProtocol accepts the exact tokens "TCP" and "UDP".
func ParseTransportProtocol(s string) (TransportProtocol, error) {
	switch s {
	case "TCP":
		return TCP, nil
	case "UDP":
		return UDP, nil
	default:
		return 0, fmt.Errorf("unknown transport protocol %q", s)
	}
}

var ErrInvalidMatchKey = errors.New("invalid match key")

// MatchKey identifies a service by transport protocol and port. It is
// comparable and used directly as a map key.
type MatchKey struct {
	Protocol TransportProtocol
	Port     uint16
}

// ParseMatchKey parses "<TCP|UDP>:<port>". String is its exact inverse.
func ParseMatchKey(s string) (MatchKey, error) {
	proto, port, ok := strings.Cut(s, ":")
	if !ok {
		return MatchKey{}, fmt.Errorf("%w %q: missing ':'", ErrInvalidMatchKey, s)
	}
	p, err := ParseTransportProtocol(proto)
	if err != nil {
		return MatchKey{}, fmt.Errorf("%w %q: %v", ErrInvalidMatchKey, s, err)
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return MatchKey{}, fmt.Errorf("%w %q: bad port: %v", ErrInvalidMatchKey, s, err)
	}
	if strconv.FormatUint(n, 10) != port {
		return MatchKey{}, fmt.Errorf("%w %q: port must not have leading zeros", ErrInvalidMatchKey, s)
	}
	return MatchKey{Protocol: p, Port: uint16(n)}, nil
}

// String formats the key as "<TCP|UDP>:<port>".
func (k MatchKey) String() string {
	return k.Protocol.String() + ":" + strconv.FormatUint(uint64(k.Port), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (k MatchKey) MarshalText() ([]byte, error) {
	if k.Protocol != TCP && k.Protocol != UDP {
		return nil, fmt.Errorf("%w: protocol %s", ErrInvalidMatchKey, k.Protocol)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MatchKey) UnmarshalText(b []byte) error {
	parsed, err := ParseMatchKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
