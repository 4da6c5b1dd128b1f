package acl

// Option sets an optional request parameter.
// Options that do not apply to an endpoint are ignored.
type Option func(*options)

type options struct {
	tenantID        string
	displayName     string
	captchaResponse string
}

// WithTenantID overrides the tenant from RequestConfig.
func WithTenantID(id string) Option {
	return func(o *options) {
		o.tenantID = id
	}
}

// WithDisplayName names the passkey being enrolled.
func WithDisplayName(name string) Option {
	return func(o *options) {
		o.displayName = name
	}
}

// WithCaptchaResponse attaches a reCAPTCHA token to a password sign-in.
func WithCaptchaResponse(token string) Option {
	return func(o *options) {
		o.captchaResponse = token
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
