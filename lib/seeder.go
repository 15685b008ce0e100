package lib

import (
	"context"
	"errors"
	"time"

	"github.com/deamwork/aad-seed/lib/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// RootPath is where the browser is sent once the cache is seeded, so the
// application reads its auth state on startup.
const RootPath = "/"

var (
	ErrNoAcquirer  = errors.New("seeder needs a token acquirer")
	ErrNoStorage   = errors.New("seeder needs a session storage")
	ErrNoNavigator = errors.New("seeder needs a navigator")
)

// Navigator loads a path of the application under test.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// NopNavigator only logs; used when the storage is not a live browser.
type NopNavigator struct{}

func (NopNavigator) Navigate(ctx context.Context, path string) error {
	log.Debugf("No browser attached, skipping navigation to %s", path)
	return ctx.Err()
}

type Seeder struct {
	Settings  AuthSettings
	Acquirer  TokenAcquirer
	Storage   storage.SessionStorage
	Navigator Navigator
	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Seeder) Validate() error {
	if s.Acquirer == nil {
		return ErrNoAcquirer
	}
	if s.Storage == nil {
		return ErrNoStorage
	}
	if s.Navigator == nil {
		return ErrNoNavigator
	}
	return s.Settings.Validate()
}

// Login seeds session storage with a freshly acquired token and opens the
// application root, returning the token response.
//
// When cached is not nil no request is made and nothing is written: the
// browser is only navigated and cached is returned as is. Entries from a
// previous run are not checked, so if session storage was cleared in the
// meantime the application starts unauthenticated.
func (s *Seeder) Login(ctx context.Context, cached *TokenResponse) (*TokenResponse, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if cached != nil {
		log.Warn("Reusing cached token response; session storage is not re-seeded")
		if err := s.Navigator.Navigate(ctx, RootPath); err != nil {
			return nil, xerrors.Errorf("navigating to %s: %w", RootPath, err)
		}
		return cached, nil
	}

	log.Debug("Step 1: acquire token")
	tokenResponse, err := s.Acquirer.AcquireToken(ctx, s.Settings)
	if err != nil {
		return nil, err
	}

	log.Debug("Step 2: inject token cache")
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if err = InjectTokens(ctx, s.Storage, s.Settings, tokenResponse, now()); err != nil {
		return nil, err
	}

	log.Debugf("Step 3: navigate to %s", RootPath)
	if err = s.Navigator.Navigate(ctx, RootPath); err != nil {
		return nil, xerrors.Errorf("navigating to %s: %w", RootPath, err)
	}

	log.Infof("Seeded session for %s", s.Settings.Username)
	return tokenResponse, nil
}
