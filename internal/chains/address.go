package chains

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// ValidateRecipient checks that a configured pay-to address is well-formed
// for the rail's addressing scheme: a 20-byte hex address for the two EVM
// rails, a base58-encoded ed25519 public key for the Solana-shaped slow
// rail B. Called once at startup so a typo in a recipient address fails
// fast instead of silently advertising an unpayable route.
func ValidateRecipient(caip2, address string) error {
	if IsEVM(caip2) {
		if !common.IsHexAddress(address) {
			return fmt.Errorf("chains: %q is not a valid address for %s", address, caip2)
		}
		return nil
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("chains: %q is not a valid Solana address for %s: %w", address, caip2, err)
	}
	return nil
}
