// Package card exposes the money-moving endpoints of a card.
package card

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kichcoin/ledger/pkg/domain"
	cryptosvc "github.com/kichcoin/ledger/pkg/service/crypto"
	transfersvc "github.com/kichcoin/ledger/pkg/service/transfer"
	"github.com/kichcoin/ledger/webapi/common"
)

const maxHistoryLimit = 200

// Routes registers HTTP routes for card operations.
func Routes(app *fiber.App, transferSvc *transfersvc.Service, cryptoSvc *cryptosvc.Service) {
	app.Post("/cards/:id/transfer", Transfer(transferSvc))
	app.Post("/cards/:id/crypto-transfer", CryptoTransfer(cryptoSvc))
	app.Get("/cards/:id/transactions", Transactions(transferSvc))
}

// Transfer moves money to another card of the ledger.
// @Summary Transfer to a card
// @Description Debits the amount plus commission, credits the converted amount to the receiver.
// @Tags cards
// @Accept json
// @Produce json
// @Param id path int true "Sender card ID"
// @Param request body TransferRequest true "Transfer details"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /cards/{id}/transfer [post]
func Transfer(transferSvc *transfersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cardID, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid card ID", err)
		}
		input, err := common.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := common.ParseAmount(input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		tx, err := transferSvc.TransferMoney(c.UserContext(), cardID, input.ToCardNumber, amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Transfer failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transfer completed", TransferResponse{
			Success:     true,
			Transaction: toTransactionDTO(tx),
		})
	}
}

// CryptoTransfer sends BTC or ETH to a card or an external address.
// @Summary Send crypto
// @Description Recipients matching a card are settled internally; anything else goes through the blockchain gateway.
// @Tags cards
// @Accept json
// @Produce json
// @Param id path int true "Sender card ID"
// @Param request body CryptoTransferRequest true "Crypto transfer details"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Router /cards/{id}/crypto-transfer [post]
func CryptoTransfer(cryptoSvc *cryptosvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cardID, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid card ID", err)
		}
		input, err := common.BindAndValidate[CryptoTransferRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := common.ParseAmount(input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		cryptoType, err := domain.ParseCryptoType(input.CryptoType)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid crypto type", err)
		}
		res, err := cryptoSvc.TransferCrypto(c.UserContext(), cryptosvc.Request{
			FromCardID: cardID,
			Recipient:  input.Recipient,
			Amount:     amount,
			CryptoType: cryptoType,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Crypto transfer failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Crypto transfer accepted", toCryptoResponse(res))
	}
}

// Transactions lists the rows touching a card, newest first.
// @Summary Card history
// @Tags cards
// @Produce json
// @Param id path int true "Card ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Router /cards/{id}/transactions [get]
func Transactions(transferSvc *transfersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cardID, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid card ID", err)
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				return common.ProblemDetailsJSON(c, "Invalid limit",
					domain.Invalid("limit", "must be a positive integer"))
			}
			limit = min(limit, maxHistoryLimit)
		}
		txs, err := transferSvc.History(c.UserContext(), cardID, limit)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list transactions", err)
		}
		out := make([]TransactionDTO, 0, len(txs))
		for _, tx := range txs {
			out = append(out, toTransactionDTO(tx))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", out)
	}
}
