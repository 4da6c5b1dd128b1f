package domain

// PasskeyEnrollment holds the WebAuthn creation options the backend issued
// for registering a new passkey on the signed-in account.
type PasskeyEnrollment struct {
	// Challenge is the opaque challenge the authenticator must sign.
	Challenge string

	// RPID identifies the relying party the credential is scoped to.
	RPID string

	// UserID is the WebAuthn user handle assigned by the backend.
	UserID string
}

// PasskeySignIn holds the WebAuthn request options for a passkey sign-in.
type PasskeySignIn struct {
	Challenge string
	RPID      string
}

// PasskeyCredential is a passkey already registered on an account.
type PasskeyCredential struct {
	CredentialID string
	Name         string
}

// AccountInfo is the subset of the account record returned by a lookup.
type AccountInfo struct {
	LocalID       string
	Email         string
	DisplayName   string
	EmailVerified bool
	Passkeys      []PasskeyCredential
}

// PasskeyRegistration is the authenticator's answer to a creation challenge,
// with binary fields already base64url encoded.
type PasskeyRegistration struct {
	CredentialID      string
	RawID             string
	ClientDataJSON    string
	AttestationObject string
}

// PasskeyAssertion is the authenticator's answer to a sign-in challenge.
// UserHandle is optional.
type PasskeyAssertion struct {
	CredentialID      string
	RawID             string
	ClientDataJSON    string
	AuthenticatorData string
	Signature         string
	UserHandle        string
}
