package upstream

import (
	"errors"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// parseToken verifies a token minted by Sign and returns its subject.
func (s *TokenSigner) parseToken(tokenStr string) (string, error) {
	claims := &serviceClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}
	if claims.Scope != serviceScope {
		return "", errors.New("invalid token scope")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token subject")
	}
	return sub, nil
}
