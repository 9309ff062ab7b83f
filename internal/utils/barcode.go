package utils

import (
	"fmt"
	"math/rand"
	"strconv"
)

// In-store EAN-13 codes use the GS1 restricted-circulation prefix, so a
// locally printed label can never collide with a supplier barcode
const inStorePrefix = "200"

// EAN13Checksum computes the check digit for the first 12 digits of an
// EAN-13 code. Returns an error if the input is not exactly 12 digits.
func EAN13Checksum(digits string) (int, error) {
	if len(digits) != 12 {
		return 0, fmt.Errorf("expected 12 digits, got %d", len(digits))
	}

	sum := 0
	for i, r := range digits {
		d, err := strconv.Atoi(string(r))
		if err != nil {
			return 0, fmt.Errorf("invalid digit %q at position %d", r, i)
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10, nil
}

// ValidateEAN13 reports whether the code is a well-formed EAN-13 with a
// correct check digit
func ValidateEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	check, err := EAN13Checksum(code[:12])
	if err != nil {
		return false
	}
	return strconv.Itoa(check) == code[12:]
}

// GenerateEAN13 mints an in-store EAN-13 around a product id. Codes are
// deterministic per product, so reprinting a label yields the same code.
func GenerateEAN13(productID uint) string {
	body := fmt.Sprintf("%s%09d", inStorePrefix, productID%1_000_000_000)
	check, _ := EAN13Checksum(body)
	return body + strconv.Itoa(check)
}

// GenerateRandomEAN13 mints an in-store EAN-13 with a random body, for
// labels not tied to a product id
func GenerateRandomEAN13() string {
	body := fmt.Sprintf("%s%09d", inStorePrefix, rand.Intn(1_000_000_000))
	check, _ := EAN13Checksum(body)
	return body + strconv.Itoa(check)
}
