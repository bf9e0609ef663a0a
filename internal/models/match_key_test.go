package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchKey(t *testing.T) {
	for _, s := range []string{"TCP:443", "UDP:53", "TCP:0", "UDP:65535"} {
		k, err := ParseMatchKey(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, k.String())
	}

	k, err := ParseMatchKey("UDP:5353")
	require.NoError(t, err)
	assert.Equal(t, MatchKey{Protocol: UDP, Port: 5353}, k)
}

func TestParseMatchKeyRejectsMalformed(t *testing.T) {
	bad := []string{"", "TCP", "tcp:443", "ICMP:1", "TCP:", "TCP:-1", "TCP:65536", "TCP:80:1", " TCP:80", "TCP:0443", "UDP:00053", "TCP:+80"}
	for _, s := range bad {
		_, err := ParseMatchKey(s)
		assert.ErrorIs(t, err, ErrInvalidMatchKey, "input %q", s)
	}
}

func TestParseMatchKeyAcceptsPortZero(t *testing.T) {
	k, err := ParseMatchKey("UDP:0")
	require.NoError(t, err)
	assert.Equal(t, "UDP:0", k.String())
}

func TestMatchKeyText(t *testing.T) {
	var k MatchKey
	require.NoError(t, k.UnmarshalText([]byte("TCP:22")))
	b, err := k.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TCP:22", string(b))

	_, err = MatchKey{Port: 1}.MarshalText()
	assert.Error(t, err)
}
