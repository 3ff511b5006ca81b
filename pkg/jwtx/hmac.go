package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret    = errors.New("jwtx: empty signing secret")
	ErrUnsupportedAlg = errors.New("jwtx: unsupported signing algorithm")
)

// HMACConfig is the immutable token configuration handed to NewHMAC.
type HMACConfig struct {
	// Secret is the shared signing key. Required.
	Secret []byte

	// Algorithm is one of HS256, HS384, HS512. Empty means HS256.
	Algorithm string

	// TTL is the access token lifetime. Zero means DefaultAccessTokenTTL.
	TTL time.Duration

	// Issuer is written to and required on the "iss" claim. Empty disables both.
	Issuer string

	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// HMAC issues and verifies shared-secret signed access tokens.
type HMAC struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

var _ interface {
	Signer
	Verifier
} = (*HMAC)(nil)

// NewHMAC validates cfg and returns a ready HMAC issuer/verifier.
func NewHMAC(cfg HMACConfig) (*HMAC, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}

	method, err := hmacMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultAccessTokenTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("jwtx: negative ttl %s", ttl)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &HMAC{
		secret: secret,
		method: method,
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

func hmacMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch alg {
	case "", jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
}

func (h *HMAC) Alg() string { return h.method.Alg() }

// TTL is the configured access token lifetime.
func (h *HMAC) TTL() time.Duration { return h.ttl }

// Issue creates a token for subject using the configured TTL.
func (h *HMAC) Issue(subject string) (string, Claims, error) {
	return h.IssueWithTTL(subject, h.ttl)
}

// IssueWithTTL creates a token for subject that expires ttl from now. A ttl
// of zero yields a token that is already expired.
func (h *HMAC) IssueWithTTL(subject string, ttl time.Duration) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, ErrMissingSubject
	}
	claims := NewAccessClaims(subject, h.issuer, ttl, h.now().UTC())
	token, err := h.Sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

// Sign takes your claims and turns them into a signed JWT string.
func (h *HMAC) Sign(claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(h.method, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify checks structure, algorithm, signature, issuer and time claims, in
// that order, and returns the claims of a valid token. Expired tokens fail
// with ErrExpired; everything else fails with ErrInvalidToken.
func (h *HMAC) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := h.parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, h.classify(token, err)
	}
	if !token.Valid {
		return Claims{}, invalid(ErrInvalidClaim)
	}
	if err := claims.ValidateSubject(); err != nil {
		return Claims{}, invalid(err)
	}
	return claims, nil
}

// classify maps golang-jwt errors onto the jwtx sentinels.
func (h *HMAC) classify(token *jwt.Token, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return invalid(ErrMalformed, err)
	case errors.Is(err, ErrAlgMismatch), errors.Is(err, jwt.ErrTokenUnverifiable):
		return invalid(ErrAlgMismatch, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if token != nil && token.Method != nil && token.Method.Alg() != h.method.Alg() {
			return invalid(ErrAlgMismatch, err)
		}
		return invalid(ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalid(ErrIssuer, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return invalid(ErrNotYetValid, err)
	default:
		return invalid(ErrInvalidClaim, err)
	}
}

func invalid(detail error, cause ...error) error {
	if len(cause) > 0 {
		return fmt.Errorf("%w: %w: %w", ErrInvalidToken, detail, cause[0])
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, detail)
}
