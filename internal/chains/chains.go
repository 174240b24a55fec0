// Package chains holds the static registry of settlement networks the
// gateway accepts payment on.
package chains

import (
	"fmt"
	"strconv"
	"strings"
)

// Rail identifies which of the three settlement rails a chain belongs to.
type Rail string

const (
	// RailFast is the sub-second-finality chain verified directly from
	// transaction receipts.
	RailFast Rail = "fast"
	// RailSlowA is a permit-based rail served through the external facilitator.
	RailSlowA Rail = "slow-a"
	// RailSlowB is the second permit-based rail (Solana-shaped addressing).
	RailSlowB Rail = "slow-b"
)

// CAIP-2 network identifiers for the three supported chains.
const (
	NetworkFast  = "eip155:4326"
	NetworkSlowA = "eip155:8453"
	NetworkSlowB = "solana:4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM"
)

// Stablecoin describes the stablecoin accepted on a chain.
type Stablecoin struct {
	Symbol          string
	ContractAddress string
	Decimals        int
}

// Chain is a static, compile-time description of a supported payment network.
type Chain struct {
	ChainID       uint64
	CAIP2         string
	DisplayName   string
	RPCURL        string
	Stablecoin    Stablecoin
	BlockTimeMS   int
	Rail          Rail
	EIP712Name    string // EVM permit rails only
	EIP712Version string // EVM permit rails only
	FeePayer      string // Solana-shaped rail only
}

var registry = map[string]Chain{}
var ordered []Chain

func register(c Chain) {
	registry[c.CAIP2] = c
	ordered = append(ordered, c)
}

func init() {
	register(Chain{
		ChainID:     4326,
		CAIP2:       NetworkFast,
		DisplayName: "Fast Rail",
		BlockTimeMS: 450,
		Rail:        RailFast,
		Stablecoin: Stablecoin{
			Symbol:   "USDF",
			Decimals: 18,
		},
	})
	register(Chain{
		ChainID:       8453,
		CAIP2:         NetworkSlowA,
		DisplayName:   "Slow Rail A",
		BlockTimeMS:   2000,
		Rail:          RailSlowA,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
		Stablecoin: Stablecoin{
			Symbol:   "USDC",
			Decimals: 6,
		},
	})
	register(Chain{
		ChainID:     0,
		CAIP2:       NetworkSlowB,
		DisplayName: "Slow Rail B",
		BlockTimeMS: 400,
		Rail:        RailSlowB,
		Stablecoin: Stablecoin{
			Symbol:   "USDC",
			Decimals: 6,
		},
	})
}

// ErrUnknownNetwork is returned by Lookup for an unrecognized CAIP-2 identifier.
var ErrUnknownNetwork = fmt.Errorf("chains: unrecognized network")

// Lookup returns the chain registered under the given CAIP-2 identifier.
func Lookup(caip2 string) (Chain, error) {
	c, ok := registry[caip2]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, caip2)
	}
	return c, nil
}

// ForRail returns the chain registered for a given settlement rail.
func ForRail(rail Rail) (Chain, error) {
	for _, c := range ordered {
		if c.Rail == rail {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: rail %s", ErrUnknownNetwork, rail)
}

// All returns every registered chain, in stable registration order.
func All() []Chain {
	out := make([]Chain, len(ordered))
	copy(out, ordered)
	return out
}

// ConfigureFast sets the fast rail's RPC URL and stablecoin contract address;
// called once during config loading since these are deployment-specific.
func ConfigureFast(rpcURL, contractAddress string) {
	c := registry[NetworkFast]
	c.RPCURL = rpcURL
	c.Stablecoin.ContractAddress = contractAddress
	registry[NetworkFast] = c
	for i := range ordered {
		if ordered[i].CAIP2 == NetworkFast {
			ordered[i] = c
		}
	}
}

// ParseCAIP2 splits a CAIP-2 identifier into its namespace and reference.
func ParseCAIP2(id string) (namespace, reference string, err error) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("chains: invalid CAIP-2 identifier %q", id)
	}
	return parts[0], parts[1], nil
}

// IsEVM reports whether a CAIP-2 identifier names an eip155 namespace.
func IsEVM(caip2 string) bool {
	ns, _, err := ParseCAIP2(caip2)
	return err == nil && ns == "eip155"
}

// ChainIDOf extracts the numeric EVM chain id from a CAIP-2 identifier.
func ChainIDOf(caip2 string) (uint64, error) {
	ns, ref, err := ParseCAIP2(caip2)
	if err != nil {
		return 0, err
	}
	if ns != "eip155" {
		return 0, fmt.Errorf("chains: %q is not an eip155 network", caip2)
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chains: invalid chain id in %q: %w", caip2, err)
	}
	return id, nil
}
