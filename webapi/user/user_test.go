package user_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	infrarepo "github.com/kichcoin/ledger/infra/repository"
	"github.com/kichcoin/ledger/webapi/testutils"
	"github.com/stretchr/testify/suite"
)

type UserTestSuite struct {
	testutils.E2ETestSuite
}

func TestUserTestSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func (s *UserTestSuite) TestCreateUserVariants() {
	s.CreateTestUser()

	testCases := []struct {
		desc       string
		body       string
		wantStatus int
	}{
		{
			desc:       "success",
			body:       `{"username":"newuser","password":"password123"}`,
			wantStatus: fiber.StatusCreated,
		},
		{
			desc:       "invalid body",
			body:       `{"username":123}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			desc:       "short password",
			body:       `{"username":"another","password":"123"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			desc:       "username taken",
			body:       `{"username":"newuser","password":"password123"}`,
			wantStatus: fiber.StatusConflict,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.desc, func() {
			resp := s.MakeRequest(http.MethodPost, "/users", tc.body)
			defer resp.Body.Close() //nolint:errcheck
			s.Equal(tc.wantStatus, resp.StatusCode)
		})
	}
}

func (s *UserTestSuite) TestCreateUser_IssuesOneCardPerType() {
	u := s.CreateTestUser()

	s.NotZero(u.User.ID)
	s.Len(u.Cards, 4)
	for _, typ := range []string{"usd", "uah", "crypto", "kichcoin"} {
		card := u.Card(typ)
		s.Len(card.Number, 16)
		s.Len(card.CVV, 3)
	}
	s.NotEmpty(u.Card("crypto").BtcAddress)
	s.NotEmpty(u.Card("crypto").EthAddress)
	s.Empty(u.Card("usd").BtcAddress)
}

func (s *UserTestSuite) TestListCards() {
	u := s.CreateTestUser()

	s.Run("hides the cvv", func() {
		resp := s.MakeRequest(http.MethodGet, fmt.Sprintf("/users/%d/cards", u.User.ID), "")
		s.Equal(fiber.StatusOK, resp.StatusCode)
		var cards []testutils.RegisteredCard
		s.Decode(resp, &cards)
		s.Len(cards, 4)
		for _, c := range cards {
			s.Empty(c.CVV)
		}
	})

	s.Run("unknown user", func() {
		resp := s.MakeRequest(http.MethodGet, "/users/9999/cards", "")
		s.Equal(fiber.StatusNotFound, resp.StatusCode)
		s.Equal("user not found", s.Problem(resp).Detail)
	})

	s.Run("malformed id", func() {
		resp := s.MakeRequest(http.MethodGet, "/users/abc/cards", "")
		defer resp.Body.Close() //nolint:errcheck
		s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	})
}

func (s *UserTestSuite) TestRegenerateCard() {
	u := s.CreateTestUser()
	before := u.Card("usd")

	resp := s.MakeRequest(http.MethodPost,
		fmt.Sprintf("/users/%d/cards/%d/regenerate", u.User.ID, before.ID), "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var after testutils.RegisteredCard
	s.Decode(resp, &after)
	s.Equal(before.ID, after.ID)
	s.NotEqual(before.Number, after.Number)
	s.Len(after.CVV, 3)

	other := s.CreateTestUser()
	resp = s.MakeRequest(http.MethodPost,
		fmt.Sprintf("/users/%d/cards/%d/regenerate", other.User.ID, before.ID), "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
}

func (s *UserTestSuite) TestDeleteUser() {
	u := s.CreateTestUser()

	resp := s.MakeRequest(http.MethodDelete, fmt.Sprintf("/users/%d", u.User.ID), "")
	s.Equal(fiber.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = s.MakeRequest(http.MethodGet, fmt.Sprintf("/users/%d/cards", u.User.ID), "")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	regulator, err := infrarepo.NewUserRepository(s.Ledger.DB()).GetRegulator(context.Background(), false)
	s.Require().NoError(err)
	resp = s.MakeRequest(http.MethodDelete, fmt.Sprintf("/users/%d", regulator.ID), "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}
