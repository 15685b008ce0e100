package lib

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/xerrors"
)

var (
	ErrMissingIDToken = errors.New("token response has no id_token")
	ErrMissingClaim   = errors.New("id token is missing a required claim")
)

// IdentityClaims are the id token claims the cache entries are built from.
type IdentityClaims struct {
	jwt.RegisteredClaims
	ObjectID          string `json:"oid,omitempty"`
	SessionID         string `json:"sid,omitempty"`
	TenantID          string `json:"tid,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
}

// LocalAccountID is oid, falling back to sid.
func (c *IdentityClaims) LocalAccountID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.SessionID
}

// DecodeIDToken reads the claims of an id token WITHOUT verifying its
// signature or expiry. Only use it on tokens that were just received from a
// trusted token endpoint.
func DecodeIDToken(idToken string) (*IdentityClaims, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrMissingIDToken
	}

	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, xerrors.Errorf("decoding id token: %w", err)
	}

	if claims.LocalAccountID() == "" {
		return nil, xerrors.Errorf("oid or sid: %w", ErrMissingClaim)
	}
	if claims.TenantID == "" {
		return nil, xerrors.Errorf("tid: %w", ErrMissingClaim)
	}

	return claims, nil
}
