package acl

import (
	"time"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/wire"
	"github.com/jsamuelsen/authrpc/internal/domain"
)

// Clock returns the validation time. Token validators read it once per
// response, after the body arrived.
type Clock func() time.Time

type verifyPasswordPayload struct {
	Email             string `json:"email"                     validate:"required,email"`
	Password          string `json:"password"                  validate:"required"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
	TenantID          string `json:"tenantId,omitempty"`
	CaptchaResponse   string `json:"captchaResponse,omitempty"`
}

// VerifyPasswordRequest signs in with an email and password.
type VerifyPasswordRequest struct {
	request[verifyPasswordPayload]
}

// NewVerifyPasswordRequest builds an accounts:signInWithPassword request.
func NewVerifyPasswordRequest(cfg RequestConfig, email, password string, opts ...Option) (*VerifyPasswordRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointVerifyPassword, cfg, verifyPasswordPayload{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
		TenantID:          cfg.tenant(o.tenantID),
		CaptchaResponse:   o.captchaResponse,
	})
	if err != nil {
		return nil, err
	}

	return &VerifyPasswordRequest{r}, nil
}

// tokenResponse is the identity toolkit token shape. Every field is optional.
type tokenResponse struct {
	IDToken      string       `json:"idToken"`
	RefreshToken string       `json:"refreshToken"`
	LocalID      string       `json:"localId"`
	Email        string       `json:"email"`
	DisplayName  string       `json:"displayName"`
	Registered   bool         `json:"registered"`
	ExpiresIn    wire.Seconds `json:"expiresIn"`
}

// VerifyPasswordValidator returns the validator for
// accounts:signInWithPassword responses using now as validation time.
func VerifyPasswordValidator(now Clock) func(wire.RawResponse) (*domain.TokenGrant, error) {
	return func(raw wire.RawResponse) (*domain.TokenGrant, error) {
		return decodeGrant(raw, now)
	}
}

// ValidateVerifyPassword validates an accounts:signInWithPassword response at
// the current time.
func ValidateVerifyPassword(raw wire.RawResponse) (*domain.TokenGrant, error) {
	return VerifyPasswordValidator(time.Now)(raw)
}

var grantSchema = wire.Schema{
	wire.Required(wire.TypeString, "idToken"),
	wire.Required(wire.TypeString, "refreshToken"),
}

// requiredGrantValidator validates token responses that must carry both
// tokens, such as the passkey finalize endpoints.
func requiredGrantValidator(now Clock) func(wire.RawResponse) (*domain.TokenGrant, error) {
	return func(raw wire.RawResponse) (*domain.TokenGrant, error) {
		if _, err := grantSchema.Extract(raw); err != nil {
			return nil, err
		}

		return decodeGrant(raw, now)
	}
}

func decodeGrant(raw wire.RawResponse, now Clock) (*domain.TokenGrant, error) {
	var resp tokenResponse
	if err := wire.DecodeOptional(raw, &resp); err != nil {
		return nil, err
	}

	grant := &domain.TokenGrant{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		Registered:   resp.Registered,
	}
	grant.ApproximateExpirationDate = expiration(raw.Has("expiresIn"), resp.ExpiresIn, resp.IDToken, now)

	return grant, nil
}

type refreshTokenPayload struct {
	GrantType    string `json:"grantType"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshTokenRequest exchanges a refresh token at the secure token service.
type RefreshTokenRequest struct {
	request[refreshTokenPayload]
}

// NewRefreshTokenRequest builds a secure token refresh request.
func NewRefreshTokenRequest(cfg RequestConfig, refreshToken string) (*RefreshTokenRequest, error) {
	r, err := newRequest(EndpointRefreshToken, cfg, refreshTokenPayload{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, err
	}

	return &RefreshTokenRequest{r}, nil
}

// refreshResponse is the secure token service shape, keyed in snake_case.
type refreshResponse struct {
	AccessToken  string       `json:"access_token"`
	IDToken      string       `json:"id_token"`
	RefreshToken string       `json:"refresh_token"`
	UserID       string       `json:"user_id"`
	ExpiresIn    wire.Seconds `json:"expires_in"`
}

// RefreshTokenValidator returns the validator for token refresh responses
// using now as validation time.
func RefreshTokenValidator(now Clock) func(wire.RawResponse) (*domain.TokenGrant, error) {
	return func(raw wire.RawResponse) (*domain.TokenGrant, error) {
		var resp refreshResponse
		if err := wire.DecodeOptional(raw, &resp); err != nil {
			return nil, err
		}

		grant := &domain.TokenGrant{
			IDToken:      resp.IDToken,
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			LocalID:      resp.UserID,
		}
		grant.ApproximateExpirationDate = expiration(raw.Has("expires_in"), resp.ExpiresIn, grant.BearerToken(), now)

		return grant, nil
	}
}

// ValidateRefreshToken validates a token refresh response at the current time.
func ValidateRefreshToken(raw wire.RawResponse) (*domain.TokenGrant, error) {
	return RefreshTokenValidator(time.Now)(raw)
}

// expiration prefers the relative lifetime sent with the response and falls
// back to the exp claim of the ID token. The zero time means unknown.
func expiration(hasExpiresIn bool, expiresIn wire.Seconds, idToken string, now Clock) time.Time {
	if hasExpiresIn {
		return now().Add(expiresIn.Duration())
	}

	if idToken == "" {
		return time.Time{}
	}

	claims, err := ParseIDTokenClaims(idToken)
	if err != nil {
		return time.Time{}
	}

	return claims.ExpirationTime
}
