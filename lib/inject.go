package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/deamwork/aad-seed/lib/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// CacheEntries are the three records MSAL.js keeps after a login, with the
// session storage key each one lives under.
type CacheEntries struct {
	AccountKey     string
	Account        AccountEntity
	IDTokenKey     string
	IDToken        IDTokenEntity
	AccessTokenKey string
	AccessToken    AccessTokenEntity
}

// BuildCacheEntries derives the cache records for a token response. cachedAt
// is truncated to whole seconds.
func BuildCacheEntries(settings AuthSettings, tokenResponse *TokenResponse, cachedAt time.Time) (*CacheEntries, error) {
	if tokenResponse == nil {
		return nil, ErrMissingTokenResponse
	}
	claims, err := DecodeIDToken(tokenResponse.IDToken)
	if err != nil {
		return nil, err
	}

	localAccountID := claims.LocalAccountID()
	realm := claims.TenantID
	homeAccountID := HomeAccountID(localAccountID, realm)
	target := ScopeTarget(settings.APIScopes)
	now := cachedAt.Unix()

	return &CacheEntries{
		AccountKey: AccountKey(homeAccountID, realm),
		Account: AccountEntity{
			AuthorityType:  AuthorityTypeMSSTS,
			ClientInfo:     "",
			HomeAccountID:  homeAccountID,
			Environment:    Environment,
			Realm:          realm,
			LocalAccountID: localAccountID,
			Username:       claims.PreferredUsername,
			Name:           claims.Name,
		},
		IDTokenKey: IDTokenKey(homeAccountID, settings.ClientID, realm),
		IDToken: IDTokenEntity{
			CredentialType: CredentialTypeIDToken,
			HomeAccountID:  homeAccountID,
			Environment:    Environment,
			ClientID:       settings.ClientID,
			Secret:         tokenResponse.IDToken,
			Realm:          realm,
		},
		AccessTokenKey: AccessTokenKey(homeAccountID, settings.ClientID, realm, target),
		AccessToken: AccessTokenEntity{
			HomeAccountID:     homeAccountID,
			CredentialType:    CredentialTypeAccessToken,
			Secret:            tokenResponse.AccessToken,
			CachedAt:          strconv.FormatInt(now, 10),
			ExpiresOn:         strconv.FormatInt(now+tokenResponse.ExpiresIn, 10),
			ExtendedExpiresOn: strconv.FormatInt(now+tokenResponse.ExtExpiresIn, 10),
			Environment:       Environment,
			ClientID:          settings.ClientID,
			Realm:             realm,
			Target:            target,
		},
	}, nil
}

// InjectTokens writes the account, id token and access token records into
// session storage, overwriting whatever is stored under the same keys.
func InjectTokens(ctx context.Context, store storage.SessionStorage, settings AuthSettings, tokenResponse *TokenResponse, now time.Time) error {
	entries, err := BuildCacheEntries(settings, tokenResponse, now)
	if err != nil {
		return err
	}

	items := []struct {
		key   string
		value interface{}
	}{
		{entries.AccountKey, entries.Account},
		{entries.IDTokenKey, entries.IDToken},
		{entries.AccessTokenKey, entries.AccessToken},
	}

	for _, item := range items {
		encoded, err := encodeEntity(item.value)
		if err != nil {
			return err
		}
		log.Debugf("Injecting session storage entry %s", item.key)
		if err = store.SetItem(ctx, item.key, encoded); err != nil {
			return xerrors.Errorf("writing %s: %w", item.key, err)
		}
	}

	return nil
}

// encodeEntity serializes like JSON.stringify: no HTML escaping, no
// trailing newline.
func encodeEntity(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
