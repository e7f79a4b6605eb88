package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password using bcrypt with cost 14.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, 14)
}

// HashPasswordCost hashes with an explicit bcrypt cost.
func HashPasswordCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// RandomDigits returns n random decimal digits.
func RandomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// GenerateCardNumber returns a 16-digit number starting with 4 whose last
// digit is the Luhn check digit.
func GenerateCardNumber() (string, error) {
	body, err := RandomDigits(14)
	if err != nil {
		return "", err
	}
	partial := "4" + body
	return partial + string(byte('0'+luhnCheckDigit(partial))), nil
}

// LuhnValid reports whether number passes the Luhn checksum.
func LuhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return luhnCheckDigit(number[:len(number)-1]) == int(number[len(number)-1]-'0')
}

func luhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// GenerateCVV returns a 3-digit card verification value.
func GenerateCVV() (string, error) {
	return RandomDigits(3)
}

// CardExpiry formats the MM/YY expiry of a card issued at t.
func CardExpiry(t time.Time) string {
	return t.AddDate(4, 0, 0).Format("01/06")
}

// GenerateBtcAddress returns a random native segwit (bech32) address. It is
// format-valid only; no key backs it.
func GenerateBtcAddress() (string, error) {
	var b strings.Builder
	b.WriteString("bc1q")
	for i := 0; i < 38; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bech32Charset))))
		if err != nil {
			return "", err
		}
		b.WriteByte(bech32Charset[n.Int64()])
	}
	return b.String(), nil
}

// GenerateEthAddress returns a random 0x-prefixed 20-byte hex address.
func GenerateEthAddress() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}
