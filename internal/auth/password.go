package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used in production.
//
// COST AND LOGIN LATENCY:
// Each step doubles the work: cost 12 is 2^12 rounds, about a quarter of a
// second on a current server core. Raise it when hashing drops well below
// ~200ms on the deployment hardware. Tests use cost 4 (bcrypt.MinCost).
const defaultCost = 12

// maxSecretBytes is bcrypt's input limit. Longer input is silently truncated
// by the library, so Hash rejects it instead.
//
// The limit is in bytes, not characters: 40 Devanagari or accented letters
// can already exceed it. Registration checks the byte length up front (the
// "bcrypt" validation tag), so users see a 400 and not this error.
const maxSecretBytes = 72

// ErrMismatch is returned by Verify when the plaintext does not match.
var ErrMismatch = errors.New("auth: secret does not match")

// PasswordService hashes and verifies secrets with bcrypt.
//
// Two kinds of secret go through it:
//   - account passwords for email sign-in
//   - the 6-digit one-time codes of the phone flow, which are stored hashed
//     so a leaked database does not expose live codes
//
// The salt and cost are embedded in the output ($2a$<cost>$<salt+hash>),
// so a single TEXT column is enough to store the result.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest lets tests in other packages pick a low cost
// (bcrypt.MinCost is 4). Never use it outside tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return newPasswordServiceWithCost(cost)
}

// Hash hashes plaintext with a fresh random salt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxSecretBytes {
		return "", fmt.Errorf("auth: secret must be %d bytes or fewer", maxSecretBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrMismatch when it does
// not, and a wrapped error when hash is not a bcrypt hash at all.
//
// TIMING:
// bcrypt compares the final digests in constant time, and the cost factor
// makes every call take about as long as any other. Callers that look up a
// user first still answer faster for an unknown user. Login does not pad
// that path; the register endpoint already reports taken emails.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("auth: comparing hash: %w", err)
	}
	return nil
}
