package lib

import (
	"context"
	"errors"
	"strings"

	"github.com/99designs/keyring"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	KeyringSecretPrefix = "keyring:"
	SSMSecretPrefix     = "ssm:"
)

var (
	ErrNoKeyring      = errors.New("secret references the keyring but no keyring is open")
	ErrSecretNotFound = errors.New("secret not found")
)

// SecretResolver expands secret references in settings values.
// "keyring:<item>" reads the item from the keyring, "ssm:<name>" reads a
// decrypted SSM parameter. Other values are returned unchanged.
type SecretResolver struct {
	Keyring keyring.Keyring
	// NewSSM is called at most once, on the first ssm: reference.
	NewSSM func() (ssmiface.SSMAPI, error)

	ssm ssmiface.SSMAPI
}

// NewSSMClient builds an SSM client from the default AWS credential chain.
func NewSSMClient(region string) (ssmiface.SSMAPI, error) {
	conf := &aws.Config{}
	if region != "" {
		conf.Region = aws.String(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *conf,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return ssm.New(sess), nil
}

func (r *SecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	switch {
	case strings.HasPrefix(value, KeyringSecretPrefix):
		return r.fromKeyring(strings.TrimPrefix(value, KeyringSecretPrefix))
	case strings.HasPrefix(value, SSMSecretPrefix):
		return r.fromSSM(ctx, strings.TrimPrefix(value, SSMSecretPrefix))
	}
	return value, nil
}

// ResolveSettings returns a copy of s with clientSecret and password resolved.
func (r *SecretResolver) ResolveSettings(ctx context.Context, s AuthSettings) (AuthSettings, error) {
	var err error
	if s.ClientSecret, err = r.Resolve(ctx, s.ClientSecret); err != nil {
		return s, xerrors.Errorf("resolving clientSecret: %w", err)
	}
	if s.Password, err = r.Resolve(ctx, s.Password); err != nil {
		return s, xerrors.Errorf("resolving password: %w", err)
	}
	return s, nil
}

func (r *SecretResolver) fromKeyring(key string) (string, error) {
	if r.Keyring == nil {
		return "", ErrNoKeyring
	}
	log.Debugf("Reading secret %s from keyring", key)
	item, err := r.Keyring.Get(key)
	if err == keyring.ErrKeyNotFound {
		return "", xerrors.Errorf("keyring item %s: %w", key, ErrSecretNotFound)
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

func (r *SecretResolver) fromSSM(ctx context.Context, name string) (string, error) {
	if r.ssm == nil {
		newSSM := r.NewSSM
		if newSSM == nil {
			newSSM = func() (ssmiface.SSMAPI, error) { return NewSSMClient("") }
		}
		client, err := newSSM()
		if err != nil {
			return "", xerrors.Errorf("creating ssm client: %w", err)
		}
		r.ssm = client
	}

	log.Debugf("Reading secret %s from SSM", name)
	out, err := r.ssm.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Errorf("ssm parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Errorf("ssm parameter %s: %w", name, ErrSecretNotFound)
	}
	return aws.StringValue(out.Parameter.Value), nil
}
