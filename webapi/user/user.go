package user

import (
	"github.com/gofiber/fiber/v2"
	usersvc "github.com/kichcoin/ledger/pkg/service/user"
	"github.com/kichcoin/ledger/webapi/common"
)

// Routes registers HTTP routes for user-related operations.
func Routes(app *fiber.App, userSvc *usersvc.Service) {
	app.Post("/users", CreateUser(userSvc))
	app.Get("/users/:id/cards", ListCards(userSvc))
	app.Post("/users/:id/cards/:cardId/regenerate", RegenerateCard(userSvc))
	app.Delete("/users/:id", DeleteUser(userSvc))
}

// CreateUser registers a user and issues one card of every type.
// @Summary Register a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body NewUser true "Registration data"
// @Success 201 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 409 {object} common.ProblemDetails
// @Router /users [post]
func CreateUser(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[NewUser](c)
		if input == nil {
			return err // error response already written
		}
		u, cards, err := userSvc.Register(c.UserContext(), input.Username, input.Password)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't create user", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "User created", RegisteredUser{
			User:  toUserDTO(u),
			Cards: toCardDTOs(cards, true),
		})
	}
}

// ListCards returns the cards of a user.
// @Summary List a user's cards
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Router /users/{id}/cards [get]
func ListCards(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid user ID", err)
		}
		cards, err := userSvc.Cards(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list cards", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Cards fetched", toCardDTOs(cards, false))
	}
}

// RegenerateCard issues a new number, expiry and CVV for a card.
// @Summary Regenerate card details
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param cardId path int true "Card ID"
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Router /users/{id}/cards/{cardId}/regenerate [post]
func RegenerateCard(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid user ID", err)
		}
		cardID, err := common.ParseID(c, "cardId")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid card ID", err)
		}
		card, err := userSvc.RegenerateCard(c.UserContext(), userID, cardID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't regenerate card", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Card regenerated", toCardDTO(card, true))
	}
}

// DeleteUser removes a user and its cards.
// @Summary Delete a user
// @Tags users
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /users/{id} [delete]
func DeleteUser(userSvc *usersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid user ID", err)
		}
		if err := userSvc.Delete(c.UserContext(), id); err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't delete user", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
