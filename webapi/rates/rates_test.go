package rates_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kichcoin/ledger/webapi/rates"
	"github.com/kichcoin/ledger/webapi/testutils"
	"github.com/stretchr/testify/suite"
)

type RatesTestSuite struct {
	testutils.E2ETestSuite
}

func TestRatesTestSuite(t *testing.T) {
	suite.Run(t, new(RatesTestSuite))
}

func (s *RatesTestSuite) TestLatest() {
	resp := s.MakeRequest(http.MethodGet, "/rates/latest", "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	var out rates.RatesDTO
	s.Decode(resp, &out)
	s.Equal("41", out.UsdToUah)
	s.Equal("60000", out.BtcToUsd)
	s.Equal("3000", out.EthToUsd)
	s.Equal("static", out.Source)
}

func (s *RatesTestSuite) TestRefresh_AppendsSnapshot() {
	before := s.Ledger.Rates("40", "50000", "2500")

	resp := s.MakeRequest(http.MethodPost, "/rates/refresh", "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	var out rates.RatesDTO
	s.Decode(resp, &out)
	s.Equal("41", out.UsdToUah)
	s.Equal("60000", out.BtcToUsd)

	latest := s.MakeRequest(http.MethodGet, "/rates/latest", "")
	var got rates.RatesDTO
	s.Decode(latest, &got)
	s.Equal("41", got.UsdToUah)
	s.NotEqual(before.UsdToUah.String(), got.UsdToUah)
}
