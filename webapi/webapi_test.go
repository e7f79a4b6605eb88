package webapi_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kichcoin/ledger/webapi/testutils"
	"github.com/stretchr/testify/suite"
)

type WebAPITestSuite struct {
	testutils.E2ETestSuite
}

func TestWebAPITestSuite(t *testing.T) {
	s := new(WebAPITestSuite)
	s.Cfg = testutils.TestConfig()
	s.Cfg.RateLimit.MaxRequests = 3
	suite.Run(t, s)
}

func (s *WebAPITestSuite) TestHealth() {
	resp := s.MakeRequest(http.MethodGet, "/", "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), "running")
}

func (s *WebAPITestSuite) TestUnknownRouteIsProblem() {
	resp := s.MakeRequest(http.MethodGet, "/nope", "", "X-Forwarded-For", "10.0.0.9")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	pd := s.Problem(resp)
	s.Equal(fiber.StatusNotFound, pd.Status)
}

func (s *WebAPITestSuite) TestRateLimitPerClient() {
	for i := 0; i < 3; i++ {
		resp := s.MakeRequest(http.MethodGet, "/", "", "X-Forwarded-For", "10.0.0.1, 172.16.0.1")
		s.Equal(fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := s.MakeRequest(http.MethodGet, "/", "", "X-Forwarded-For", "10.0.0.1")
	s.Equal(fiber.StatusTooManyRequests, resp.StatusCode)
	s.Equal("Too Many Requests", s.Problem(resp).Title)

	other := s.MakeRequest(http.MethodGet, "/", "", "X-Forwarded-For", "10.0.0.2")
	defer other.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusOK, other.StatusCode)
}
