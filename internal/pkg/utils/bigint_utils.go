package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBigInt converts a raw integer amount to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	formatted := ToDecimal(amount, decimals).StringFixed(int32(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	return formatted
}

// ToDecimal scales a raw integer amount down by 10^decimals without losing
// precision.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FiatValue prices a raw amount at unitPrice per whole unit.
func FiatValue(amount *big.Int, decimals uint8, unitPrice decimal.Decimal) decimal.Decimal {
	return ToDecimal(amount, decimals).Mul(unitPrice)
}
