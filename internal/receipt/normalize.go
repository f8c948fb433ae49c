package receipt

import (
	"strings"

	"golang.org/x/text/width"
)

// amountSuffix is appended to every normalized amount
const amountSuffix = "円"

var amountStripper = strings.NewReplacer("¥", "", "￥", "", ",", "")

// NormalizeAmount rewrites an amount such as "￥1,234" or "１２３４円" as "1234円".
// Input without any digit is returned unchanged.
func NormalizeAmount(s string) string {
	folded := amountStripper.Replace(width.Fold.String(s))

	var digits strings.Builder
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return s
	}
	return digits.String() + amountSuffix
}
