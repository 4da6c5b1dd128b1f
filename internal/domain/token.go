package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenGrant is the credential set issued by token-issuing endpoints.
// Every field is optional; an unset expiration is the zero time.
type TokenGrant struct {
	// IDToken is the bearer token identifying the signed-in user.
	IDToken string

	// RefreshToken exchanges for a new IDToken once it expires.
	RefreshToken string

	// AccessToken is set by the secure token service and usually equals IDToken.
	AccessToken string

	// LocalID is the backend user identifier.
	LocalID string

	Email       string
	DisplayName string
	Registered  bool

	// ApproximateExpirationDate is computed when the response is validated,
	// not when the request was sent.
	ApproximateExpirationDate time.Time
}

// HasExpiration reports whether an expiration instant is known.
func (g *TokenGrant) HasExpiration() bool {
	return !g.ApproximateExpirationDate.IsZero()
}

// ExpiresWithin reports whether the grant expires before now+window.
// Grants without a known expiration never expire by this measure.
func (g *TokenGrant) ExpiresWithin(now time.Time, window time.Duration) bool {
	if !g.HasExpiration() {
		return false
	}

	return !now.Add(window).Before(g.ApproximateExpirationDate)
}

// BearerToken returns the token to present to resource servers.
func (g *TokenGrant) BearerToken() string {
	if g.IDToken != "" {
		return g.IDToken
	}

	return g.AccessToken
}

// OAuth2Token converts the grant for use with golang.org/x/oauth2 clients.
func (g *TokenGrant) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  g.BearerToken(),
		TokenType:    "Bearer",
		RefreshToken: g.RefreshToken,
		Expiry:       g.ApproximateExpirationDate,
	}
}

// TokenClaims are the unverified claims read from an ID token.
type TokenClaims struct {
	Subject        string
	Issuer         string
	Audience       []string
	IssuedAt       time.Time
	ExpirationTime time.Time
	AuthTime       time.Time
	SignInProvider string
	Claims         map[string]any
}
