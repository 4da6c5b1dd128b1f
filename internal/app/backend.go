package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/acl"
	"github.com/jsamuelsen/authrpc/internal/domain"
	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

// AuthBackendConfig holds the collaborators of an AuthBackend.
type AuthBackendConfig struct {
	// Transport delivers encoded requests. Required.
	Transport ports.Transport

	// Request holds the API key, app id and default tenant. Required.
	Request acl.RequestConfig

	// Clock is the validation time source of token endpoints. Defaults to time.Now.
	Clock acl.Clock

	Logger *slog.Logger
}

// RequestConfigFrom builds the ambient request config from application config.
func RequestConfigFrom(cfg *config.Config) acl.RequestConfig {
	return acl.RequestConfig{
		APIKey:   cfg.Backend.APIKey,
		AppID:    cfg.Backend.AppID,
		TenantID: cfg.Backend.TenantID,
	}
}

// AuthBackend exposes one method per backend endpoint.
type AuthBackend struct {
	dispatcher *Dispatcher
	request    acl.RequestConfig
	clock      acl.Clock
}

// NewAuthBackend creates an AuthBackend.
func NewAuthBackend(cfg AuthBackendConfig) (*AuthBackend, error) {
	if cfg.Request.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	d, err := NewDispatcher(DispatcherConfig{Transport: cfg.Transport, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &AuthBackend{dispatcher: d, request: cfg.Request, clock: clock}, nil
}

// Dispatcher returns the underlying dispatcher.
func (b *AuthBackend) Dispatcher() *Dispatcher {
	return b.dispatcher
}

// StartPasskeyEnrollment requests WebAuthn creation options for the account
// behind idToken.
func (b *AuthBackend) StartPasskeyEnrollment(ctx context.Context, idToken string, opts ...acl.Option) (*domain.PasskeyEnrollment, error) {
	req, err := acl.NewStartPasskeyEnrollmentRequest(b.request, idToken, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.ValidateStartPasskeyEnrollment)
}

// FinalizePasskeyEnrollment registers the attested passkey and returns fresh tokens.
func (b *AuthBackend) FinalizePasskeyEnrollment(
	ctx context.Context,
	idToken string,
	reg domain.PasskeyRegistration,
	opts ...acl.Option,
) (*domain.TokenGrant, error) {
	req, err := acl.NewFinalizePasskeyEnrollmentRequest(b.request, idToken, reg, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.FinalizePasskeyEnrollmentValidator(b.clock))
}

// StartPasskeySignIn requests WebAuthn request options.
func (b *AuthBackend) StartPasskeySignIn(ctx context.Context, opts ...acl.Option) (*domain.PasskeySignIn, error) {
	req, err := acl.NewStartPasskeySignInRequest(b.request, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.ValidateStartPasskeySignIn)
}

// FinalizePasskeySignIn exchanges a passkey assertion for tokens.
func (b *AuthBackend) FinalizePasskeySignIn(
	ctx context.Context,
	assertion domain.PasskeyAssertion,
	opts ...acl.Option,
) (*domain.TokenGrant, error) {
	req, err := acl.NewFinalizePasskeySignInRequest(b.request, assertion, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.FinalizePasskeySignInValidator(b.clock))
}

// VerifyPassword signs in with email and password.
func (b *AuthBackend) VerifyPassword(ctx context.Context, email, password string, opts ...acl.Option) (*domain.TokenGrant, error) {
	req, err := acl.NewVerifyPasswordRequest(b.request, email, password, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.VerifyPasswordValidator(b.clock))
}

// RefreshToken exchanges a refresh token for a new grant.
func (b *AuthBackend) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	req, err := acl.NewRefreshTokenRequest(b.request, refreshToken)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.RefreshTokenValidator(b.clock))
}

// GetAccountInfo looks up the account behind idToken.
func (b *AuthBackend) GetAccountInfo(ctx context.Context, idToken string, opts ...acl.Option) (*domain.AccountInfo, error) {
	req, err := acl.NewGetAccountInfoRequest(b.request, idToken, opts...)
	if err != nil {
		return nil, err
	}

	return Dispatch(ctx, b.dispatcher, req, acl.ValidateGetAccountInfo)
}
