// Package rates exposes the current exchange-rate snapshot.
package rates

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kichcoin/ledger/pkg/domain"
	ratesvc "github.com/kichcoin/ledger/pkg/service/rates"
	"github.com/kichcoin/ledger/webapi/common"
)

// RatesDTO is the public view of a rate snapshot.
type RatesDTO struct {
	UsdToUah  string    `json:"usdToUah"`
	BtcToUsd  string    `json:"btcToUsd"`
	EthToUsd  string    `json:"ethToUsd"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toRatesDTO(r *domain.ExchangeRates) RatesDTO {
	return RatesDTO{
		UsdToUah:  r.UsdToUah.String(),
		BtcToUsd:  r.BtcToUsd.String(),
		EthToUsd:  r.EthToUsd.String(),
		Source:    r.Source,
		UpdatedAt: r.UpdatedAt,
	}
}

// Routes registers HTTP routes for exchange rates.
func Routes(app *fiber.App, ratesSvc *ratesvc.Service) {
	app.Get("/rates/latest", Latest(ratesSvc))
	app.Post("/rates/refresh", Refresh(ratesSvc))
}

// Latest returns the snapshot every conversion currently uses.
// @Summary Latest exchange rates
// @Tags rates
// @Produce json
// @Success 200 {object} common.Response
// @Failure 503 {object} common.ProblemDetails
// @Router /rates/latest [get]
func Latest(ratesSvc *ratesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := ratesSvc.Latest(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Rates unavailable", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rates fetched", toRatesDTO(r))
	}
}

// Refresh pulls the feeds now and appends a new snapshot.
// @Summary Refresh exchange rates
// @Tags rates
// @Produce json
// @Success 200 {object} common.Response
// @Failure 503 {object} common.ProblemDetails
// @Router /rates/refresh [post]
func Refresh(ratesSvc *ratesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := ratesSvc.Refresh(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Rates refresh failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rates refreshed", toRatesDTO(r))
	}
}
