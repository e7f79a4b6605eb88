package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() Rates {
	return Rates{
		UsdToUah: decimal.RequireFromString("40.5"),
		BtcToUsd: decimal.RequireFromString("60000"),
		EthToUsd: decimal.RequireFromString("3000"),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse(" btc ")
	require.NoError(t, err)
	assert.Equal(t, BTC, c)

	_, err = Parse("EUR")
	assert.Error(t, err)
}

func TestPrecision(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(2), Precision(USD))
	assert.Equal(t, int32(2), Precision(UAH))
	assert.Equal(t, int32(2), Precision(KICH))
	assert.Equal(t, int32(8), Precision(BTC))
	assert.Equal(t, int32(8), Precision(ETH))
	assert.Equal(t, "0.00100000", Format(dec("0.001"), BTC))
	assert.Equal(t, "0.01", Unit(USD).String())
}

func TestConvert(t *testing.T) {
	t.Parallel()
	rates := testRates()

	tests := []struct {
		name   string
		amount string
		from   Code
		to     Code
		want   string
	}{
		{"same currency", "12.345", USD, USD, "12.35"},
		{"usd to uah", "50", USD, UAH, "2025"},
		{"uah to usd", "2025", UAH, USD, "50"},
		{"usd to btc", "120", USD, BTC, "0.002"},
		{"btc to uah chains through usd", "0.001", BTC, UAH, "2430"},
		{"eth to btc", "1", ETH, BTC, "0.05"},
		{"kichcoin is pegged to usd", "10", KICH, USD, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := rates.Convert(dec(tt.amount), tt.from, tt.to)
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestConvert_InvalidRates(t *testing.T) {
	t.Parallel()

	_, err := Rates{}.Convert(dec("1"), USD, UAH)
	assert.ErrorIs(t, err, ErrInvalidRates)

	_, err = testRates().Convert(dec("1"), Code("EUR"), USD)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestComputeTransfer_UsdToUah(t *testing.T) {
	t.Parallel()

	q, err := ComputeTransfer(dec("50.00"), USD, UAH, testRates())
	require.NoError(t, err)

	assert.Equal(t, "0.50", q.Commission.StringFixed(2))
	assert.Equal(t, "50.50", q.TotalDebit.StringFixed(2))
	assert.Equal(t, "2025.00", q.Converted.StringFixed(2))
	// 0.50 USD / 60000 = 0.00000833 BTC
	assert.Equal(t, "0.00000833", q.BtcCommission.StringFixed(8))
}

func TestComputeTransfer_CryptoSender(t *testing.T) {
	t.Parallel()

	q, err := ComputeTransfer(dec("0.002"), BTC, BTC, testRates())
	require.NoError(t, err)
	assert.Equal(t, "0.00002000", q.Commission.StringFixed(8))
	assert.Equal(t, "0.00202000", q.TotalDebit.StringFixed(8))
	assert.True(t, q.Converted.Equal(dec("0.002")))
	assert.True(t, q.BtcCommission.Equal(q.Commission))
}

func TestComputeTransfer_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	_, err := ComputeTransfer(decimal.Zero, USD, UAH, testRates())
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = ComputeTransfer(dec("-5"), USD, UAH, testRates())
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	// rounds to zero at fiat precision
	_, err = ComputeTransfer(dec("0.001"), USD, UAH, testRates())
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestCalculator_CustomRate(t *testing.T) {
	t.Parallel()

	q, err := NewCalculator(dec("0.02")).Compute(dec("100"), UAH, UAH, testRates())
	require.NoError(t, err)
	assert.Equal(t, "2.00", q.Commission.StringFixed(2))
	assert.Equal(t, "102.00", q.TotalDebit.StringFixed(2))

	assert.True(t, NewCalculator(decimal.Zero).CommissionRate.Equal(DefaultCommissionRate))
}

// Converting X -> Y -> X may only drift by the rounding of each leg: half a
// unit of Y expressed in X, plus one unit of X.
func TestConvert_RoundTripBound(t *testing.T) {
	t.Parallel()
	rates := testRates()
	codes := []Code{USD, UAH, KICH, BTC, ETH}
	amounts := map[Code][]string{
		USD:  {"0.01", "1", "123.45", "99999.99"},
		UAH:  {"0.41", "10", "4999.73", "1000000"},
		KICH: {"1", "77.77"},
		BTC:  {"0.00123456", "0.5", "2"},
		ETH:  {"0.01", "1.23456789", "40"},
	}

	for _, x := range codes {
		for _, y := range codes {
			if x == y {
				continue
			}
			for _, s := range amounts[x] {
				a := dec(s)
				there, err := rates.Convert(a, x, y)
				require.NoError(t, err)
				back, err := rates.Convert(there, y, x)
				require.NoError(t, err)

				halfUnitY := Unit(y).Div(decimal.NewFromInt(2))
				halfUnitYInX, err := rates.ToUSD(halfUnitY, y)
				require.NoError(t, err)
				halfUnitYInX, err = rates.FromUSD(halfUnitYInX, x)
				require.NoError(t, err)
				bound := halfUnitYInX.Add(Unit(x))

				drift := back.Sub(a).Abs()
				assert.True(t, drift.LessThanOrEqual(bound),
					"%s %s -> %s -> %s: drift %s exceeds %s", s, x, y, x, drift, bound)
			}
		}
	}
}
