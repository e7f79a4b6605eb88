// Package webapi provides the HTTP API of the ledger.
// It is organized into sub-packages for different domains:
// - user: Registration and card management endpoints
// - card: Transfer, crypto transfer and history endpoints
// - rates: Exchange rate endpoints
package webapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kichcoin/ledger/pkg/app"
	cardweb "github.com/kichcoin/ledger/webapi/card"
	"github.com/kichcoin/ledger/webapi/common"
	ratesweb "github.com/kichcoin/ledger/webapi/rates"
	userweb "github.com/kichcoin/ledger/webapi/user"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Uses X-Forwarded-For when behind a proxy, then X-Real-IP, then the peer IP.
	if rl := a.Config.RateLimit; rl != nil && rl.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:        rl.MaxRequests,
			Expiration: rl.Window,
			KeyGenerator: func(c *fiber.Ctx) string {
				if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
					if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
						return strings.TrimSpace(forwardedFor[:commaIndex])
					}
					return strings.TrimSpace(forwardedFor)
				}
				if realIP := c.Get("X-Real-IP"); realIP != "" {
					return realIP
				}
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	if a.Config.Env != "test" {
		fiberApp.Use(logger.New())
	}

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Ledger API is running")
	})

	userweb.Routes(fiberApp, a.UserService)
	cardweb.Routes(fiberApp, a.TransferService, a.CryptoService)
	ratesweb.Routes(fiberApp, a.RatesService)
	return fiberApp
}
