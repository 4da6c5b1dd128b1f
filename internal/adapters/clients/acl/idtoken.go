package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// Private claim names set by the identity backend.
const (
	claimAuthTime       = "auth_time"
	claimFirebase       = "firebase"
	claimSignInProvider = "sign_in_provider"
)

// ParseIDTokenClaims reads the claims of an ID token WITHOUT verifying its
// signature or validity window. The result is informational only and must
// never be used to authorize anything.
func ParseIDTokenClaims(idToken string) (*domain.TokenClaims, error) {
	tok, err := jwt.ParseString(idToken, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("parsing id token: %w", err)
	}

	all, err := tok.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading id token claims: %w", err)
	}

	claims := &domain.TokenClaims{
		Subject:        tok.Subject(),
		Issuer:         tok.Issuer(),
		Audience:       tok.Audience(),
		IssuedAt:       tok.IssuedAt(),
		ExpirationTime: tok.Expiration(),
		Claims:         all,
	}

	private := tok.PrivateClaims()

	if at, ok := unixSeconds(private[claimAuthTime]); ok {
		claims.AuthTime = at
	}

	if fb, ok := private[claimFirebase].(map[string]any); ok {
		claims.SignInProvider, _ = fb[claimSignInProvider].(string)
	}

	return claims, nil
}

func unixSeconds(v any) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return time.Time{}, false
		}

		return time.Unix(i, 0), true
	default:
		return time.Time{}, false
	}
}
