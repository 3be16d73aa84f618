package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// AccessCodeDigits is the length of a trusted party access code.
const AccessCodeDigits = 12

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
func NewID32() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewAccessCode returns a zero-padded random numeric code of AccessCodeDigits digits.
func NewAccessCode() (string, error) {
	return numericCode(AccessCodeDigits)
}

func numericCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("id: read random: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
