package upstream

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer  = "pharmacy-pos-reconciler"
	serviceScope = "pharmacy:read"
)

type serviceClaims struct {
	jwtlib.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenSigner mints the short-lived HS256 tokens sent with every backend
// request.
type TokenSigner struct {
	secret  []byte
	ttl     time.Duration
	subject string
	now     func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration, subject string) *TokenSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if subject == "" {
		subject = tokenIssuer
	}
	return &TokenSigner{
		secret:  []byte(secret),
		ttl:     ttl,
		subject: subject,
		now:     time.Now,
	}
}

func (s *TokenSigner) Sign() (string, error) {
	now := s.now().UTC()
	claims := serviceClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   s.subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
		},
		Scope: serviceScope,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
