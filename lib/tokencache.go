package lib

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/99designs/keyring"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var ErrNoCachedToken = errors.New("no cached token response")

// TokenCache keeps the last token response per authority, client and user in
// the keyring, so later runs can hand it to Seeder.Login.
type TokenCache struct {
	Keyring keyring.Keyring
}

func TokenCacheKey(s AuthSettings) string {
	return "aad-token-" + strings.ToLower(strings.Join([]string{
		strings.TrimRight(s.Authority, "/"), s.ClientID, s.Username,
	}, "|"))
}

func (c *TokenCache) Get(s AuthSettings) (*TokenResponse, error) {
	key := TokenCacheKey(s)
	item, err := c.Keyring.Get(key)
	if err == keyring.ErrKeyNotFound {
		return nil, ErrNoCachedToken
	}
	if err != nil {
		log.Debugf("Couldnt get cached token from keyring: %s", err)
		return nil, err
	}

	var tr TokenResponse
	if err = json.Unmarshal(item.Data, &tr); err != nil {
		return nil, xerrors.Errorf("decoding cached token %s: %w", key, err)
	}
	return &tr, nil
}

func (c *TokenCache) Put(s AuthSettings, tr *TokenResponse) error {
	encoded, err := json.Marshal(tr)
	if err != nil {
		return err
	}

	item := keyring.Item{
		Key:                         TokenCacheKey(s),
		Data:                        encoded,
		Label:                       "aad-seed token response",
		KeychainNotTrustApplication: false,
	}
	return c.Keyring.Set(item)
}

func (c *TokenCache) Remove(s AuthSettings) error {
	err := c.Keyring.Remove(TokenCacheKey(s))
	if err == keyring.ErrKeyNotFound {
		return nil
	}
	return err
}
