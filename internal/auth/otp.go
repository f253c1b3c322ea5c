package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PHONE CODE LIFECYCLE:
//  1. GenerateCode draws the digits from crypto/rand.
//  2. The service stores only the bcrypt hash of the code in an
//     otp_challenges row, with an expiry (OTP_TTL) and an attempt counter.
//  3. The plain code leaves the process once, in the SMS body.
//  4. Verification compares against the hash; a wrong code bumps the
//     counter and the challenge dies after the fifth failure or first use.

// CodeLength is the number of digits in a phone sign-in code.
const CodeLength = 6

// GenerateCode returns a uniformly random numeric code of CodeLength digits,
// zero padded ("004213" is a valid code).
func GenerateCode() (string, error) {
	limit := big.NewInt(1)
	for range CodeLength {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("auth: generating code: %w", err)
	}

	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
