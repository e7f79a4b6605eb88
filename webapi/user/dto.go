package user

import (
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
)

// NewUser represents the request body for registering a user.
type NewUser struct {
	Username string `json:"username" validate:"required,max=50,min=3"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UserDTO is the public view of a user.
type UserDTO struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// CardDTO is the public view of a card. The CVV is only returned when the
// card details are issued.
type CardDTO struct {
	ID         uint   `json:"id"`
	Type       string `json:"type"`
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv,omitempty"`
	Currency   string `json:"currency"`
	Balance    string `json:"balance,omitempty"`
	BtcBalance string `json:"btcBalance,omitempty"`
	EthBalance string `json:"ethBalance,omitempty"`
	BtcAddress string `json:"btcAddress,omitempty"`
	EthAddress string `json:"ethAddress,omitempty"`
}

// RegisteredUser is the response of a registration.
type RegisteredUser struct {
	User  UserDTO   `json:"user"`
	Cards []CardDTO `json:"cards"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func toCardDTO(c *domain.Card, withCVV bool) CardDTO {
	dto := CardDTO{
		ID:       c.ID,
		Type:     string(c.Type),
		Number:   c.Number,
		Expiry:   c.Expiry,
		Currency: string(c.Currency()),
	}
	if withCVV {
		dto.CVV = c.CVV
	}
	if c.IsCrypto() {
		dto.BtcBalance = currency.Format(c.BtcBalance, currency.BTC)
		dto.EthBalance = currency.Format(c.EthBalance, currency.ETH)
		dto.BtcAddress = c.BtcAddress
		dto.EthAddress = c.EthAddress
	} else {
		dto.Balance = currency.Format(c.Balance, c.Currency())
	}
	return dto
}

func toCardDTOs(cards []*domain.Card, withCVV bool) []CardDTO {
	out := make([]CardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardDTO(c, withCVV))
	}
	return out
}
