package acl

import (
	"errors"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/wire"
	"github.com/jsamuelsen/authrpc/internal/domain"
)

type getAccountInfoPayload struct {
	IDToken  string `json:"idToken"            validate:"required"`
	TenantID string `json:"tenantId,omitempty"`
}

// GetAccountInfoRequest looks up the account behind an ID token.
type GetAccountInfoRequest struct {
	request[getAccountInfoPayload]
}

// NewGetAccountInfoRequest builds an accounts:lookup request.
func NewGetAccountInfoRequest(cfg RequestConfig, idToken string, opts ...Option) (*GetAccountInfoRequest, error) {
	o := applyOptions(opts)

	r, err := newRequest(EndpointGetAccountInfo, cfg, getAccountInfoPayload{
		IDToken:  idToken,
		TenantID: cfg.tenant(o.tenantID),
	})
	if err != nil {
		return nil, err
	}

	return &GetAccountInfoRequest{r}, nil
}

var (
	accountsSchema = wire.Schema{
		wire.Required(wire.TypeArray, "users"),
	}

	userSchema = wire.Schema{
		wire.Required(wire.TypeString, "localId"),
	}
)

type accountUser struct {
	Email         string        `json:"email"`
	DisplayName   string        `json:"displayName"`
	EmailVerified bool          `json:"emailVerified"`
	PasskeyInfo   []passkeyInfo `json:"passkeyInfo"`
}

type passkeyInfo struct {
	CredentialID string `json:"credentialId"`
	Name         string `json:"name"`
}

// ValidateGetAccountInfo reads the first user of an accounts:lookup response.
func ValidateGetAccountInfo(raw wire.RawResponse) (*domain.AccountInfo, error) {
	v, err := accountsSchema.Extract(raw)
	if err != nil {
		return nil, err
	}

	users := v.ArrayAt("users")
	if len(users) == 0 {
		return nil, domain.NewValidationError("users", "is empty")
	}

	if !users[0].IsObject() {
		return nil, domain.NewValidationError("users.0", "must be of type object")
	}

	user, err := wire.Decode([]byte(users[0].Raw))
	if err != nil {
		return nil, err
	}

	fields, err := userSchema.Extract(user)
	if err != nil {
		return nil, prefixField("users.0", err)
	}

	var opt accountUser
	if err := wire.DecodeOptional(user, &opt); err != nil {
		return nil, prefixField("users.0", err)
	}

	info := &domain.AccountInfo{
		LocalID:       fields.StringAt("localId"),
		Email:         opt.Email,
		DisplayName:   opt.DisplayName,
		EmailVerified: opt.EmailVerified,
	}

	for _, p := range opt.PasskeyInfo {
		info.Passkeys = append(info.Passkeys, domain.PasskeyCredential{
			CredentialID: p.CredentialID,
			Name:         p.Name,
		})
	}

	return info, nil
}

// prefixField rewrites a nested validation error so its path is relative to
// the whole response.
func prefixField(prefix string, err error) error {
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		return err
	}

	field := prefix
	if validation.Field != "" {
		field = prefix + "." + validation.Field
	}

	return domain.NewValidationError(field, validation.Message)
}
