package game

import (
	"unicode/utf8"

	"number_baseball/internal/domain"
)

// NumberLength is the digit count of secret numbers and guesses.
const NumberLength = 4

// ValidateNumber checks that s is exactly four pairwise-distinct decimal digits.
func ValidateNumber(s string) error {
	if utf8.RuneCountInString(s) != NumberLength {
		return domain.ErrNumberLength
	}
	var seen [10]bool
	unique := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return domain.ErrNumberNotNumeric
		}
		if seen[c-'0'] {
			unique = false
		}
		seen[c-'0'] = true
	}
	if !unique {
		return domain.ErrNumberNotUnique
	}
	return nil
}

// Score counts strikes (same digit, same position) and balls (digit present
// elsewhere). Both arguments must already be valid.
func Score(guess, target string) (strikes, balls int) {
	var present [10]bool
	for i := 0; i < len(target); i++ {
		present[target[i]-'0'] = true
	}
	matches := 0
	for i := 0; i < len(guess); i++ {
		if guess[i] == target[i] {
			strikes++
		}
		if present[guess[i]-'0'] {
			matches++
		}
	}
	return strikes, matches - strikes
}
