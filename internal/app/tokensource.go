package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// refreshWindow is how long before expiry a grant is refreshed.
const refreshWindow = time.Minute

// ErrNoRefreshToken is returned when a grant must be refreshed but carries no
// refresh token.
var ErrNoRefreshToken = errors.New("grant has no refresh token")

// grantRefresher is the part of AuthBackend a TokenSource needs.
type grantRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)
}

// refreshingSource refreshes the grant through the secure token service.
type refreshingSource struct {
	ctx     context.Context
	backend grantRefresher

	mu    sync.Mutex
	grant domain.TokenGrant
}

// Token refreshes the held grant and returns it as an oauth2 token.
func (s *refreshingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grant.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	next, err := s.backend.RefreshToken(s.ctx, s.grant.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if next.RefreshToken == "" {
		next.RefreshToken = s.grant.RefreshToken
	}

	s.grant = *next

	return s.grant.OAuth2Token(), nil
}

// NewTokenSource returns an oauth2.TokenSource that hands out grant until it
// is about to expire and then refreshes it through backend. ctx is used for
// every refresh call.
func NewTokenSource(ctx context.Context, backend *AuthBackend, grant *domain.TokenGrant) oauth2.TokenSource {
	return newTokenSource(ctx, backend, grant)
}

func newTokenSource(ctx context.Context, backend grantRefresher, grant *domain.TokenGrant) oauth2.TokenSource {
	src := &refreshingSource{ctx: ctx, backend: backend}

	var initial *oauth2.Token

	if grant != nil {
		src.grant = *grant
		initial = grant.OAuth2Token()
	}

	return oauth2.ReuseTokenSourceWithExpiry(initial, src, refreshWindow)
}
