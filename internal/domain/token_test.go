package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGrant_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		expiry   time.Time
		window   time.Duration
		expected bool
	}{
		{"no expiration", time.Time{}, time.Hour, false},
		{"far future", now.Add(time.Hour), time.Minute, false},
		{"inside window", now.Add(30 * time.Second), time.Minute, true},
		{"exactly at window edge", now.Add(time.Minute), time.Minute, true},
		{"already expired", now.Add(-time.Second), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant := &TokenGrant{ApproximateExpirationDate: tt.expiry}
			assert.Equal(t, tt.expected, grant.ExpiresWithin(now, tt.window))
		})
	}
}

func TestTokenGrant_BearerToken(t *testing.T) {
	assert.Equal(t, "id", (&TokenGrant{IDToken: "id", AccessToken: "access"}).BearerToken())
	assert.Equal(t, "access", (&TokenGrant{AccessToken: "access"}).BearerToken())
	assert.Empty(t, (&TokenGrant{}).BearerToken())
}

func TestTokenGrant_OAuth2Token(t *testing.T) {
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	grant := &TokenGrant{
		IDToken:                   "id-token",
		RefreshToken:              "refresh-token",
		ApproximateExpirationDate: expiry,
	}

	tok := grant.OAuth2Token()

	require.NotNil(t, tok)
	assert.Equal(t, "id-token", tok.AccessToken)
	assert.Equal(t, "refresh-token", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, expiry, tok.Expiry)
	assert.Equal(t, "Bearer", tok.Type())
}
