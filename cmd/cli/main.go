package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/kichcoin/ledger/infra/initializer"
	"github.com/kichcoin/ledger/pkg/app"
	"github.com/kichcoin/ledger/pkg/config"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/service/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
	muted   = color.New(color.FgHiBlack)
)

const usage = `Usage: cli <command> [arguments]
Commands:
  register <username>
  cards <user_id>
  transfer <from_card_id> <to_card_number> <amount>
  crypto-transfer <from_card_id> <recipient> <amount> [btc|eth]
  rates
  refresh-rates`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		failure.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	cfg, err := config.Load(config.GetEnv("LEDGER_ENV_FILE", ".env"))
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	a, err := app.New(deps, cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx := context.Background()
	switch cmd {
	case "register":
		return register(ctx, a, args)
	case "cards":
		return cards(ctx, a, args)
	case "transfer":
		return transfer(ctx, a, args)
	case "crypto-transfer":
		return cryptoTransfer(ctx, a, args)
	case "rates":
		r, err := a.RatesService.Latest(ctx)
		if err != nil {
			return err
		}
		printRates(r)
		return nil
	case "refresh-rates":
		r, err := a.RatesService.Refresh(ctx)
		if err != nil {
			return err
		}
		success.Println("Rates refreshed")
		printRates(r)
		return nil
	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func register(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: register <username>")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	u, issued, err := a.UserService.Register(ctx, args[0], password)
	if err != nil {
		return err
	}
	success.Printf("User %s registered (id %d)\n", u.Username, u.ID)
	printCards(issued, true)
	return nil
}

func cards(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: cards <user_id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	list, err := a.UserService.Cards(ctx, id)
	if err != nil {
		return err
	}
	printCards(list, false)
	return nil
}

func transfer(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: transfer <from_card_id> <to_card_number> <amount>")
	}
	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}
	tx, err := a.TransferService.TransferMoney(ctx, from, args[1], amount)
	if err != nil {
		return err
	}
	success.Printf("Transaction #%d completed\n", tx.ID)
	fmt.Println(tx.Description)
	muted.Printf("Debited %s %s, regulator credited %s BTC\n",
		currency.Format(tx.TotalDebit, tx.DebitCurrency), tx.DebitCurrency,
		currency.Format(tx.BtcCommission, currency.BTC))
	return nil
}

func cryptoTransfer(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: crypto-transfer <from_card_id> <recipient> <amount> [btc|eth]")
	}
	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}
	kind := ""
	if len(args) > 3 {
		kind = args[3]
	}
	cryptoType, err := domain.ParseCryptoType(kind)
	if err != nil {
		return err
	}
	res, err := a.CryptoService.TransferCrypto(ctx, crypto.Request{
		FromCardID: from,
		Recipient:  args[1],
		Amount:     amount,
		CryptoType: cryptoType,
	})
	if err != nil {
		return err
	}
	tx := res.Transaction
	success.Printf("Transaction #%d %s (%s)\n", tx.ID, tx.Status, res.SettlementMode)
	fmt.Println(tx.Description)
	if res.Warning != "" {
		warning.Println(res.Warning)
	}
	if res.SettlementMode == domain.SettlementBlockchain {
		muted.Println("Settlement is checked by the server once it is running.")
	}
	return nil
}

func printCards(list []*domain.Card, withCVV bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNUMBER\tEXPIRY\tCVV\tBALANCE")
	for _, c := range list {
		cvv := "***"
		if withCVV {
			cvv = c.CVV
		}
		balance := currency.Format(c.Balance, c.Currency()) + " " + string(c.Currency())
		if c.IsCrypto() {
			balance = fmt.Sprintf("%s BTC / %s ETH",
				currency.Format(c.BtcBalance, currency.BTC), currency.Format(c.EthBalance, currency.ETH))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Type, c.Number, c.Expiry, cvv, balance)
	}
	_ = w.Flush()
}

func printRates(r *domain.ExchangeRates) {
	fmt.Printf("USD/UAH %s\nBTC/USD %s\nETH/USD %s\n", r.UsdToUah, r.BtcToUsd, r.EthToUsd)
	muted.Printf("source %s, updated %s\n", r.Source, r.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

// readPassword hides input on a terminal and falls back to a plain line
// when stdin is piped.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print(prompt)
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
