// Package testutils runs the HTTP API against a fresh in-memory ledger.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	infracache "github.com/kichcoin/ledger/infra/cache"
	"github.com/kichcoin/ledger/infra/provider/blockchain"
	"github.com/kichcoin/ledger/infra/provider/exchangerate"
	infrarepo "github.com/kichcoin/ledger/infra/repository"
	"github.com/kichcoin/ledger/pkg/app"
	"github.com/kichcoin/ledger/pkg/config"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/kichcoin/ledger/pkg/testutils"
	"github.com/kichcoin/ledger/webapi"
	"github.com/kichcoin/ledger/webapi/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite provides a test suite with a migrated sqlite ledger behind the
// full HTTP stack. Every test gets its own database.
type E2ETestSuite struct {
	suite.Suite
	Ledger *testutils.Ledger
	App    *app.App
	Cfg    *config.App
	// Gateway replaces the simulator when set before SetupTest runs.
	Gateway provider.BlockchainGateway
	app     *fiber.App
}

// TestConfig returns a complete configuration suitable for tests: no
// sleeping retries, no background refresh and the settlement check far away.
func TestConfig() *config.App {
	return &config.App{
		Env:       "test",
		Server:    &config.Server{Host: "localhost", Port: 0, ShutdownTimeout: time.Second},
		Log:       &config.Log{Format: "text"},
		DB:        &config.DB{},
		Redis:     &config.Redis{},
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Fee:       &config.Fee{CommissionRate: 0.01},
		Retry: &config.Retry{
			TxMaxAttempts: 3,
			MaxAttempts:   3,
		},
		Rates: &config.Rates{
			RefreshInterval: time.Hour,
			CacheTTL:        time.Minute,
			DefaultUsdToUah: "41",
			DefaultBtcToUsd: "60000",
			DefaultEthToUsd: "3000",
		},
		Blockchain: &config.Blockchain{
			Timeout:      time.Second,
			HotWalletBTC: "bc1qhotwalletqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
			HotWalletETH: "0x00000000000000000000000000000000000000aa",
		},
		Settlement: &config.Settlement{CheckDelay: time.Hour, MaxChecks: 1, ResumeWindow: 24 * time.Hour},
		Regulator:  &config.Regulator{Username: "regulator", Password: "regulator-secret"},
	}
}

// SetupTest builds the app on a fresh ledger and bootstraps the regulator.
func (s *E2ETestSuite) SetupTest() {
	s.Ledger = testutils.NewLedger(s.T())
	if s.Cfg == nil {
		s.Cfg = TestConfig()
	}

	gateway := s.Gateway
	if gateway == nil {
		gateway = blockchain.NewSimulator(testutils.DiscardLogger())
	}
	deps := &app.Deps{
		Uow:        s.Ledger.UoW,
		Classifier: infrarepo.IsRetryable,
		RateFeeds: []provider.RateFeed{&exchangerate.Static{Quote: provider.RateQuote{
			UsdToUah: decimal.RequireFromString("41"),
			BtcToUsd: decimal.RequireFromString("60000"),
			EthToUsd: decimal.RequireFromString("3000"),
			Source:   "static",
		}}},
		RateCache: infracache.NewMemoryCache(),
		Gateway:   gateway,
		Logger:    testutils.DiscardLogger(),
	}

	a, err := app.New(deps, s.Cfg)
	s.Require().NoError(err)
	s.App = a
	_, err = a.RatesService.Refresh(context.Background())
	s.Require().NoError(err)
	_, err = a.UserService.EnsureRegulator(context.Background(), s.Cfg.Regulator.Username, s.Cfg.Regulator.Password)
	s.Require().NoError(err)
	s.app = webapi.SetupApp(a)
}

// TearDownTest stops the settlement monitor.
func (s *E2ETestSuite) TearDownTest() {
	if s.App != nil {
		s.App.Shutdown()
	}
}

// MakeRequest is a helper for making HTTP requests in tests
func (s *E2ETestSuite) MakeRequest(method, path, body string, headers ...string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

// Decode reads the success envelope, unmarshalling its data into out.
func (s *E2ETestSuite) Decode(resp *http.Response, out any) common.Response {
	defer resp.Body.Close() //nolint:errcheck
	var raw struct {
		common.Response
		Data json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&raw))
	if out != nil && len(raw.Data) > 0 {
		s.Require().NoError(json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

// Problem reads a problem details body.
func (s *E2ETestSuite) Problem(resp *http.Response) common.ProblemDetails {
	defer resp.Body.Close() //nolint:errcheck
	var pd common.ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}

// RegisteredCard is the part of a card the tests need.
type RegisteredCard struct {
	ID         uint   `json:"id"`
	Type       string `json:"type"`
	Number     string `json:"number"`
	CVV        string `json:"cvv"`
	BtcAddress string `json:"btcAddress"`
	EthAddress string `json:"ethAddress"`
}

// RegisteredUser is a user created through the API.
type RegisteredUser struct {
	User struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Cards []RegisteredCard `json:"cards"`
}

// Card returns the registered card of the given type.
func (u *RegisteredUser) Card(typ string) RegisteredCard {
	for _, c := range u.Cards {
		if c.Type == typ {
			return c
		}
	}
	panic(fmt.Sprintf("no %s card registered", typ))
}

// CreateTestUser registers a user with a random name through POST /users.
func (s *E2ETestSuite) CreateTestUser() *RegisteredUser {
	username := "user_" + uuid.NewString()[:8]
	resp := s.MakeRequest(http.MethodPost, "/users",
		fmt.Sprintf(`{"username":%q,"password":"password123"}`, username))
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var u RegisteredUser
	s.Decode(resp, &u)
	return &u
}
