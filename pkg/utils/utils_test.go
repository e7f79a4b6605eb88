package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	password := "testpassword"
	hashedPassword, err := HashPasswordCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEmpty(t, hashedPassword)
	assert.NotEqual(t, password, hashedPassword)
}

func TestCheckPasswordHash(t *testing.T) {
	password := "testpassword"
	hashedPassword, _ := HashPasswordCost(password, bcrypt.MinCost)

	// Test with correct password
	assert.True(t, CheckPasswordHash(password, hashedPassword))

	// Test with incorrect password
	assert.False(t, CheckPasswordHash("wrongpassword", hashedPassword))
}

func TestLuhnValid(t *testing.T) {
	assert.True(t, LuhnValid("4111111111111111"))
	assert.True(t, LuhnValid("4012888888881881"))
	assert.False(t, LuhnValid("4111111111111112"))
	assert.False(t, LuhnValid("4111-1111"))
	assert.False(t, LuhnValid("4"))
}

func TestGenerateCardNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n, err := GenerateCardNumber()
		require.NoError(t, err)
		assert.Len(t, n, 16)
		assert.Equal(t, byte('4'), n[0])
		assert.True(t, LuhnValid(n), n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestGenerateCVVAndExpiry(t *testing.T) {
	cvv, err := GenerateCVV()
	require.NoError(t, err)
	assert.Regexp(t, `^\d{3}$`, cvv)

	issued := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "03/30", CardExpiry(issued))
}

func TestGenerateAddresses(t *testing.T) {
	bech32 := regexp.MustCompile(`^bc1q[ac-hj-np-z02-9]{38}$`)
	eth := regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	for i := 0; i < 20; i++ {
		btc, err := GenerateBtcAddress()
		require.NoError(t, err)
		assert.Regexp(t, bech32, btc)

		addr, err := GenerateEthAddress()
		require.NoError(t, err)
		assert.Regexp(t, eth, addr)
	}
}
