package domain

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// AccessToken is what a successful login hands back. Nothing about it is
// persisted; the signed token is the only record.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}
