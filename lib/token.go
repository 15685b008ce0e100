package lib

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	azure "github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// TokenAcquirer exchanges the configured user credentials for tokens.
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, settings AuthSettings) (*TokenResponse, error)
}

// PasswordGrant posts a resource owner password credentials grant straight
// to the authority's v2 token endpoint. One request, no retries.
type PasswordGrant struct {
	HTTPClient *http.Client
}

func NewPasswordGrant(client *http.Client) *PasswordGrant {
	return &PasswordGrant{HTTPClient: client}
}

func (g *PasswordGrant) AcquireToken(ctx context.Context, settings AuthSettings) (*TokenResponse, error) {
	conf := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  settings.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: settings.RequestScopes(),
	}

	if g.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}

	log.Debugf("Requesting token for %s from %s", settings.Username, conf.Endpoint.TokenURL)
	token, err := conf.PasswordCredentialsToken(ctx, settings.Username, settings.Password)
	if err != nil {
		return nil, xerrors.Errorf("password grant: %w", err)
	}

	resp := &TokenResponse{AccessToken: token.AccessToken}
	if v, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = v
	}
	if resp.ExpiresIn, err = seconds(token.Extra("expires_in")); err != nil {
		return nil, xerrors.Errorf("expires_in: %w", err)
	}
	if resp.ExtExpiresIn, err = seconds(token.Extra("ext_expires_in")); err != nil {
		return nil, xerrors.Errorf("ext_expires_in: %w", err)
	}
	return resp, nil
}

// seconds reads a duration field the way the token endpoint may send it:
// a JSON number or a decimal string. Absent fields are zero.
func seconds(v interface{}) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, xerrors.Errorf("unexpected type %T", v)
}

// MSALPublicGrant runs the same username/password exchange through MSAL's
// public client, for app registrations that have no client secret.
type MSALPublicGrant struct {
	HTTPClient *http.Client
	// Now is used to turn MSAL's absolute expiry back into expires_in.
	Now func() time.Time
}

func (g *MSALPublicGrant) AcquireToken(ctx context.Context, settings AuthSettings) (*TokenResponse, error) {
	opts := []azure.Option{azure.WithAuthority(settings.Authority)}
	if g.HTTPClient != nil {
		opts = append(opts, azure.WithHTTPClient(g.HTTPClient))
	}

	client, err := azure.New(settings.ClientID, opts...)
	if err != nil {
		return nil, xerrors.Errorf("creating msal client: %w", err)
	}

	log.Debugf("Requesting token for %s through MSAL", settings.Username)
	result, err := client.AcquireTokenByUsernamePassword(ctx, settings.APIScopes, settings.Username, settings.Password)
	if err != nil {
		return nil, xerrors.Errorf("msal username/password grant: %w", err)
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	expiresIn := int64(result.ExpiresOn.Sub(now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	// MSAL does not expose ext_expires_in.
	return &TokenResponse{
		IDToken:      result.IDToken.RawToken,
		AccessToken:  result.AccessToken,
		ExpiresIn:    expiresIn,
		ExtExpiresIn: expiresIn,
	}, nil
}
