package acl

import "github.com/jsamuelsen/authrpc/internal/ports"

// Backend endpoints.
var (
	EndpointStartPasskeyEnrollment = ports.Endpoint{
		Name:    "passkeyEnrollment:start",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v2/accounts/passkeyEnrollment:start",
	}

	EndpointFinalizePasskeyEnrollment = ports.Endpoint{
		Name:    "passkeyEnrollment:finalize",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v2/accounts/passkeyEnrollment:finalize",
	}

	EndpointStartPasskeySignIn = ports.Endpoint{
		Name:    "passkeySignIn:start",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v2/accounts/passkeySignIn:start",
	}

	EndpointFinalizePasskeySignIn = ports.Endpoint{
		Name:    "passkeySignIn:finalize",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v2/accounts/passkeySignIn:finalize",
	}

	EndpointVerifyPassword = ports.Endpoint{
		Name:    "accounts:signInWithPassword",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v1/accounts:signInWithPassword",
	}

	EndpointGetAccountInfo = ports.Endpoint{
		Name:    "accounts:lookup",
		Service: ports.ServiceIdentityToolkit,
		Path:    "v1/accounts:lookup",
	}

	EndpointRefreshToken = ports.Endpoint{
		Name:    "token",
		Service: ports.ServiceSecureToken,
		Path:    "v1/token",
	}
)

// Endpoints lists every endpoint known to the client.
func Endpoints() []ports.Endpoint {
	return []ports.Endpoint{
		EndpointStartPasskeyEnrollment,
		EndpointFinalizePasskeyEnrollment,
		EndpointStartPasskeySignIn,
		EndpointFinalizePasskeySignIn,
		EndpointVerifyPassword,
		EndpointGetAccountInfo,
		EndpointRefreshToken,
	}
}
