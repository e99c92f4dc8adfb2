package domain

// ExternalLogin binds an account to a third-party identity provider's user key.
// LoginKey is the composite "provider#providerKey" sort key; it also feeds the
// cross-account GSI so one external identity can never attach to two accounts.
type ExternalLogin struct {
	AccountID   string `json:"account_id" dynamodbav:"account_id"`
	LoginKey    string `json:"-" dynamodbav:"login_key"`
	Provider    string `json:"provider" dynamodbav:"provider"`
	ProviderKey string `json:"provider_key" dynamodbav:"provider_key"`
	DisplayName string `json:"display_name,omitempty" dynamodbav:"display_name"`
}

// ExternalLoginKey builds the composite key for a (provider, providerKey) pair.
func ExternalLoginKey(provider, providerKey string) string {
	return provider + "#" + providerKey
}
