package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// backendCredentialFields are the credential names that appear in backend
// requests, responses and their Go mirrors. The identity toolkit spells
// them in camelCase and the token service in snake_case.
var backendCredentialFields = []string{
	"idToken", "id_token", "IDToken",
	"refreshToken", "refresh_token", "RefreshToken",
	"accessToken", "access_token", "AccessToken",
	"apiKey", "api_key", "apikey", "APIKey",
	"password", "Password",
	"captchaResponse", "oobCode",
}

// genericSecretFields cover everything else that looks like a secret.
var genericSecretFields = []string{
	"secret", "token", "credential", "credentials",
	"authorization", "auth", "bearer", "cookie", "session",
	"private_key", "secret_key",
}

var (
	jwtValue    = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	bearerValue = regexp.MustCompile(`(?i)^bearer\s+.+$`)
	basicValue  = regexp.MustCompile(`(?i)^basic\s+.+$`)
)

// DefaultRedactOptions returns the masq options applied to every handler.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(backendCredentialFields)+len(genericSecretFields)+5)

	for _, name := range backendCredentialFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	for _, name := range genericSecretFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtValue),
		masq.WithRegex(bearerValue),
		masq.WithRegex(basicValue),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that redacts secrets.
// opts extend DefaultRedactOptions.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
