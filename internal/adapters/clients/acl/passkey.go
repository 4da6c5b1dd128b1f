package acl

import (
	"time"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/wire"
	"github.com/jsamuelsen/authrpc/internal/domain"
)

// publicKeyCredentialType is the WebAuthn credential type of every passkey.
const publicKeyCredentialType = "public-key"

type startPasskeyEnrollmentPayload struct {
	IDToken  string `json:"idToken"            validate:"required"`
	TenantID string `json:"tenantId,omitempty"`
}

// StartPasskeyEnrollmentRequest asks for WebAuthn creation options for the
// account identified by an ID token.
type StartPasskeyEnrollmentRequest struct {
	request[startPasskeyEnrollmentPayload]
}

// NewStartPasskeyEnrollmentRequest builds a passkeyEnrollment:start request.
func NewStartPasskeyEnrollmentRequest(cfg RequestConfig, idToken string, opts ...Option) (*StartPasskeyEnrollmentRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointStartPasskeyEnrollment, cfg, startPasskeyEnrollmentPayload{
		IDToken:  idToken,
		TenantID: cfg.tenant(o.tenantID),
	})
	if err != nil {
		return nil, err
	}

	return &StartPasskeyEnrollmentRequest{r}, nil
}

var startPasskeyEnrollmentSchema = wire.Schema{
	wire.Required(wire.TypeObject, "credentialCreationOptions"),
	wire.Required(wire.TypeString, "credentialCreationOptions", "challenge"),
	wire.Required(wire.TypeString, "credentialCreationOptions", "rp", "id"),
	wire.Required(wire.TypeString, "credentialCreationOptions", "user", "id"),
}

// ValidateStartPasskeyEnrollment reads the creation challenge, relying party
// id and user handle from a passkeyEnrollment:start response.
func ValidateStartPasskeyEnrollment(raw wire.RawResponse) (*domain.PasskeyEnrollment, error) {
	v, err := startPasskeyEnrollmentSchema.Extract(raw)
	if err != nil {
		return nil, err
	}

	return &domain.PasskeyEnrollment{
		Challenge: v.StringAt("credentialCreationOptions.challenge"),
		RPID:      v.StringAt("credentialCreationOptions.rp.id"),
		UserID:    v.StringAt("credentialCreationOptions.user.id"),
	}, nil
}

type attestationResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"    validate:"required"`
	AttestationObject string `json:"attestationObject" validate:"required"`
}

type registrationResponse struct {
	ID       string              `json:"id"       validate:"required"`
	RawID    string              `json:"rawId"    validate:"required"`
	Type     string              `json:"type"`
	Response attestationResponse `json:"response"`
}

type finalizePasskeyEnrollmentPayload struct {
	IDToken      string               `json:"idToken"                           validate:"required"`
	Registration registrationResponse `json:"authenticatorRegistrationResponse"`
	DisplayName  string               `json:"displayName,omitempty"`
	TenantID     string               `json:"tenantId,omitempty"`
}

// FinalizePasskeyEnrollmentRequest submits the authenticator's attestation.
type FinalizePasskeyEnrollmentRequest struct {
	request[finalizePasskeyEnrollmentPayload]
}

// NewFinalizePasskeyEnrollmentRequest builds a passkeyEnrollment:finalize request.
func NewFinalizePasskeyEnrollmentRequest(
	cfg RequestConfig,
	idToken string,
	reg domain.PasskeyRegistration,
	opts ...Option,
) (*FinalizePasskeyEnrollmentRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointFinalizePasskeyEnrollment, cfg, finalizePasskeyEnrollmentPayload{
		IDToken: idToken,
		Registration: registrationResponse{
			ID:    reg.CredentialID,
			RawID: reg.RawID,
			Type:  publicKeyCredentialType,
			Response: attestationResponse{
				ClientDataJSON:    reg.ClientDataJSON,
				AttestationObject: reg.AttestationObject,
			},
		},
		DisplayName: o.displayName,
		TenantID:    cfg.tenant(o.tenantID),
	})
	if err != nil {
		return nil, err
	}

	return &FinalizePasskeyEnrollmentRequest{r}, nil
}

// FinalizePasskeyEnrollmentValidator returns the validator for
// passkeyEnrollment:finalize responses using now as validation time.
func FinalizePasskeyEnrollmentValidator(now Clock) func(wire.RawResponse) (*domain.TokenGrant, error) {
	return requiredGrantValidator(now)
}

// ValidateFinalizePasskeyEnrollment validates a passkeyEnrollment:finalize
// response at the current time.
func ValidateFinalizePasskeyEnrollment(raw wire.RawResponse) (*domain.TokenGrant, error) {
	return FinalizePasskeyEnrollmentValidator(time.Now)(raw)
}

type startPasskeySignInPayload struct {
	TenantID string `json:"tenantId,omitempty"`
}

// StartPasskeySignInRequest asks for WebAuthn request options.
type StartPasskeySignInRequest struct {
	request[startPasskeySignInPayload]
}

// NewStartPasskeySignInRequest builds a passkeySignIn:start request.
func NewStartPasskeySignInRequest(cfg RequestConfig, opts ...Option) (*StartPasskeySignInRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointStartPasskeySignIn, cfg, startPasskeySignInPayload{
		TenantID: cfg.tenant(o.tenantID),
	})
	if err != nil {
		return nil, err
	}

	return &StartPasskeySignInRequest{r}, nil
}

var startPasskeySignInSchema = wire.Schema{
	wire.Required(wire.TypeObject, "credentialRequestOptions"),
	wire.Required(wire.TypeString, "credentialRequestOptions", "challenge"),
	wire.Required(wire.TypeString, "credentialRequestOptions", "rpId"),
}

// ValidateStartPasskeySignIn reads the challenge and relying party id from a
// passkeySignIn:start response.
func ValidateStartPasskeySignIn(raw wire.RawResponse) (*domain.PasskeySignIn, error) {
	v, err := startPasskeySignInSchema.Extract(raw)
	if err != nil {
		return nil, err
	}

	return &domain.PasskeySignIn{
		Challenge: v.StringAt("credentialRequestOptions.challenge"),
		RPID:      v.StringAt("credentialRequestOptions.rpId"),
	}, nil
}

type assertionResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"       validate:"required"`
	AuthenticatorData string `json:"authenticatorData"    validate:"required"`
	Signature         string `json:"signature"            validate:"required"`
	UserHandle        string `json:"userHandle,omitempty"`
}

type authenticationResponse struct {
	ID       string            `json:"id"       validate:"required"`
	RawID    string            `json:"rawId"    validate:"required"`
	Type     string            `json:"type"`
	Response assertionResponse `json:"response"`
}

type finalizePasskeySignInPayload struct {
	Authentication authenticationResponse `json:"authenticatorAuthenticationResponse"`
	TenantID       string                 `json:"tenantId,omitempty"`
}

// FinalizePasskeySignInRequest submits the authenticator's assertion.
type FinalizePasskeySignInRequest struct {
	request[finalizePasskeySignInPayload]
}

// NewFinalizePasskeySignInRequest builds a passkeySignIn:finalize request.
func NewFinalizePasskeySignInRequest(
	cfg RequestConfig,
	assertion domain.PasskeyAssertion,
	opts ...Option,
) (*FinalizePasskeySignInRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointFinalizePasskeySignIn, cfg, finalizePasskeySignInPayload{
		Authentication: authenticationResponse{
			ID:    assertion.CredentialID,
			RawID: assertion.RawID,
			Type:  publicKeyCredentialType,
			Response: assertionResponse{
				ClientDataJSON:    assertion.ClientDataJSON,
				AuthenticatorData: assertion.AuthenticatorData,
				Signature:         assertion.Signature,
				UserHandle:        assertion.UserHandle,
			},
		},
		TenantID: cfg.tenant(o.tenantID),
	})
	if err != nil {
		return nil, err
	}

	return &FinalizePasskeySignInRequest{r}, nil
}

// FinalizePasskeySignInValidator returns the validator for
// passkeySignIn:finalize responses using now as validation time.
func FinalizePasskeySignInValidator(now Clock) func(wire.RawResponse) (*domain.TokenGrant, error) {
	return requiredGrantValidator(now)
}

// ValidateFinalizePasskeySignIn validates a passkeySignIn:finalize response
// at the current time.
func ValidateFinalizePasskeySignIn(raw wire.RawResponse) (*domain.TokenGrant, error) {
	return FinalizePasskeySignInValidator(time.Now)(raw)
}
