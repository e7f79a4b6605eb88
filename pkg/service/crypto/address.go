package crypto

import (
	"regexp"
	"strings"

	"github.com/kichcoin/ledger/pkg/domain"
)

var (
	btcLegacy = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	btcBech32 = regexp.MustCompile(`^bc1[ac-hj-np-z02-9]{39,59}$`)
	ethHex    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidateAddress checks the textual format of an external address. It does
// not verify checksums.
func ValidateAddress(address string, t domain.CryptoType) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Invalid("address", "recipient address is required")
	}
	switch t {
	case domain.CryptoETH:
		if ethHex.MatchString(address) {
			return nil
		}
		return domain.Invalid("address", "malformed ETH address, expected 0x followed by 40 hex characters")
	default:
		if btcLegacy.MatchString(address) || btcBech32.MatchString(strings.ToLower(address)) {
			return nil
		}
		return domain.Invalid("address", "malformed BTC address")
	}
}
