package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownNetworks(t *testing.T) {
	for _, caip2 := range []string{NetworkFast, NetworkSlowA, NetworkSlowB} {
		c, err := Lookup(caip2)
		require.NoError(t, err)
		assert.Equal(t, caip2, c.CAIP2)
	}
}

func TestLookupUnknownNetwork(t *testing.T) {
	_, err := Lookup("eip155:999999")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestDecimalsInvariant(t *testing.T) {
	for _, c := range All() {
		assert.Contains(t, []int{6, 18}, c.Stablecoin.Decimals)
	}
}

func TestCAIP2Uniqueness(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range All() {
		assert.False(t, seen[c.CAIP2], "duplicate CAIP-2 id %s", c.CAIP2)
		seen[c.CAIP2] = true
	}
}

func TestChainIDOf(t *testing.T) {
	id, err := ChainIDOf(NetworkSlowA)
	require.NoError(t, err)
	assert.EqualValues(t, 8453, id)

	_, err = ChainIDOf(NetworkSlowB)
	assert.Error(t, err)
}

func TestIsEVM(t *testing.T) {
	assert.True(t, IsEVM(NetworkFast))
	assert.True(t, IsEVM(NetworkSlowA))
	assert.False(t, IsEVM(NetworkSlowB))
}

func TestConfigureFast(t *testing.T) {
	ConfigureFast("https://rpc.example.test", "0xAbCdEf0000000000000000000000000000000001")
	c, err := Lookup(NetworkFast)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.test", c.RPCURL)
	assert.Equal(t, "0xAbCdEf0000000000000000000000000000000001", c.Stablecoin.ContractAddress)
}
