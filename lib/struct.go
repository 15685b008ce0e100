package lib

import (
	"strings"
)

const (
	// Environment is the cache environment MSAL.js uses for the global cloud.
	Environment = "login.windows.net"

	AuthorityTypeMSSTS        = "MSSTS"
	CredentialTypeIDToken     = "IdToken"
	CredentialTypeAccessToken = "AccessToken"
)

// TokenResponse is the token endpoint response body.
type TokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExtExpiresIn int64  `json:"ext_expires_in"`
}

// AccountEntity, IDTokenEntity and AccessTokenEntity mirror the session
// storage schema of MSAL.js. Field order is the serialized order.
type AccountEntity struct {
	AuthorityType  string `json:"authorityType"`
	ClientInfo     string `json:"clientInfo"`
	HomeAccountID  string `json:"homeAccountId"`
	Environment    string `json:"environment"`
	Realm          string `json:"realm"`
	LocalAccountID string `json:"localAccountId"`
	Username       string `json:"username,omitempty"`
	Name           string `json:"name,omitempty"`
}

type IDTokenEntity struct {
	CredentialType string `json:"credentialType"`
	HomeAccountID  string `json:"homeAccountId"`
	Environment    string `json:"environment"`
	ClientID       string `json:"clientId"`
	Secret         string `json:"secret"`
	Realm          string `json:"realm"`
}

type AccessTokenEntity struct {
	HomeAccountID     string `json:"homeAccountId"`
	CredentialType    string `json:"credentialType"`
	Secret            string `json:"secret"`
	CachedAt          string `json:"cachedAt"`
	ExpiresOn         string `json:"expiresOn"`
	ExtendedExpiresOn string `json:"extendedExpiresOn"`
	Environment       string `json:"environment"`
	ClientID          string `json:"clientId"`
	Realm             string `json:"realm"`
	Target            string `json:"target"`
}

// HomeAccountID joins the local account id and the tenant the way MSAL does.
func HomeAccountID(localAccountID, realm string) string {
	return localAccountID + "." + realm
}

// ScopeTarget lowercases and space-joins scopes keeping their order.
// MSAL.js matches the target by exact string, so case matters.
func ScopeTarget(scopes []string) string {
	lowered := make([]string, 0, len(scopes))
	for _, s := range scopes {
		lowered = append(lowered, strings.ToLower(s))
	}
	return strings.Join(lowered, " ")
}

func AccountKey(homeAccountID, realm string) string {
	return strings.Join([]string{homeAccountID, Environment, realm}, "-")
}

func IDTokenKey(homeAccountID, clientID, realm string) string {
	return strings.Join([]string{homeAccountID, Environment, "idtoken", clientID, realm, ""}, "-")
}

func AccessTokenKey(homeAccountID, clientID, realm, target string) string {
	return strings.Join([]string{homeAccountID, Environment, "accesstoken", clientID, realm, target}, "-")
}
