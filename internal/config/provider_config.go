package config

type ProviderConfig interface {
	GetIssuerURL() string
	GetProviderClientID() string
	GetProviderRedirectURL() string
	GetProviderScopes() []string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetIssuerURL returns the OIDC issuer used for single sign-on. Defaults to
// the Microsoft identity platform common endpoint.
func (Provider) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER", "https://login.microsoftonline.com/common/v2.0")
}

func (Provider) GetProviderClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Provider) GetProviderRedirectURL() string {
	return GetEnv("OIDC_REDIRECT_URL", "http://localhost:8080/oauth2/redirect")
}

func (Provider) GetProviderScopes() []string {
	return []string{"openid", "profile", "email", "offline_access"}
}
