package jwtx

import (
	"errors"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// ErrInvalidToken and ErrExpired are the two outcomes callers branch on.
// Every other verification error wraps ErrInvalidToken together with one of
// the detail sentinels below, so errors.Is works for both levels.
var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrExpired      = errors.New("jwtx: token expired")
)

var (
	ErrMalformed      = errors.New("jwtx: malformed token")
	ErrAlgMismatch    = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig     = errors.New("jwtx: invalid signature")
	ErrIssuer         = errors.New("jwtx: issuer mismatch")
	ErrNotYetValid    = errors.New("jwtx: token not yet valid")
	ErrMissingSubject = errors.New("jwtx: missing subject")
	ErrInvalidClaim   = errors.New("jwtx: invalid claims")
)
