package domain

import (
	"fmt"
	"strings"

	"github.com/kichcoin/ledger/pkg/currency"
)

// CryptoType selects the chain of a crypto transfer.
type CryptoType string

const (
	CryptoBTC CryptoType = "btc"
	CryptoETH CryptoType = "eth"
)

// ParseCryptoType accepts "btc"/"eth" in any case. Empty means BTC.
func ParseCryptoType(s string) (CryptoType, error) {
	switch CryptoType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CryptoBTC:
		return CryptoBTC, nil
	case CryptoETH:
		return CryptoETH, nil
	}
	return "", Invalid("crypto type", fmt.Sprintf("unsupported crypto type %q", s))
}

func (t CryptoType) Currency() currency.Code {
	if t == CryptoETH {
		return currency.ETH
	}
	return currency.BTC
}

// ConfirmationsRequired is the block depth after which a send is final.
func (t CryptoType) ConfirmationsRequired() int {
	if t == CryptoETH {
		return 12
	}
	return 3
}
