package model

import "time"

// OTPChallenge is one pending phone sign-in.
//
// The code itself is never stored, only its bcrypt hash. A challenge can be
// used once: ConsumedAt is set on the first successful verification.
type OTPChallenge struct {
	ID         string     `json:"id"`
	Phone      string     `json:"phone"` // 10-digit national number
	Role       Role       `json:"role"`  // role a new account will get
	CodeHash   string     `json:"-"`
	Attempts   int        `json:"attempts"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// MaxOTPAttempts is how many wrong codes a challenge tolerates.
const MaxOTPAttempts = 5

// Expired reports whether the challenge is past its deadline at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable reports whether a code may still be checked against the challenge.
func (c *OTPChallenge) Usable(now time.Time) bool {
	return c.ConsumedAt == nil && !c.Expired(now) && c.Attempts < MaxOTPAttempts
}
