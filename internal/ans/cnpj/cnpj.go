// Package cnpj validates and formats the 14-digit Brazilian company identifier.
package cnpj

import (
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
)

// Invalid is returned in place of an identifier that fails the checksum
const Invalid = types.Invalid

var (
	firstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CheckDigits computes the two check digits for a 12-digit base
func CheckDigits(base string) (int, int) {
	d1 := checkDigit(base, firstWeights)
	d2 := checkDigit(base+string(rune('0'+d1)), secondWeights)
	return d1, d2
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// IsValid reports whether raw, once reduced to its digits, is a valid CNPJ
func IsValid(raw string) bool {
	digits := utils.OnlyDigits(raw)
	if len(digits) != 14 {
		return false
	}
	if strings.Count(digits, digits[:1]) == 14 {
		return false
	}
	d1, d2 := CheckDigits(digits[:12])
	return int(digits[12]-'0') == d1 && int(digits[13]-'0') == d2
}

// Format renders 14 digits as XX.XXX.XXX/XXXX-XX
func Format(digits string) string {
	return digits[:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:]
}

// Validate returns the formatted identifier and true, or Invalid and false
func Validate(raw string) (string, bool) {
	if !IsValid(raw) {
		return Invalid, false
	}
	return Format(utils.OnlyDigits(raw)), true
}
