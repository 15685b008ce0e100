package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/99designs/keyring"
	"github.com/deamwork/aad-seed/lib"
	"github.com/deamwork/aad-seed/lib/browser"
	"github.com/deamwork/aad-seed/lib/storage"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

const (
	targetFile    = "file"
	targetBrowser = "browser"

	grantPassword = "password"
	grantMSAL     = "msal"
)

var (
	target      string
	grant       string
	outputPath  string
	reuse       bool
	printToken  bool
	waitBrowser bool
	headless    bool
	chromePath  string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "acquire a token for the test user and seed the session cache",
	RunE:  loginRun,
}

func init() {
	RootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&target, "target", "", targetFile, "Where to seed session storage: file or browser")
	loginCmd.Flags().StringVarP(&grant, "grant", "", grantPassword, "How to get the token: password (token endpoint) or msal (public client)")
	loginCmd.Flags().StringVarP(&outputPath, "output", "o", "~/.aad-seed/sessionstorage.json", "Session storage file for the file target")
	loginCmd.Flags().BoolVarP(&reuse, "reuse", "r", false, "Reuse the token response cached in the keyring by a previous login")
	loginCmd.Flags().BoolVarP(&printToken, "print", "", false, "Print the token response as JSON")
	loginCmd.Flags().BoolVarP(&waitBrowser, "wait", "w", false, "Keep the browser open until interrupted")
	loginCmd.Flags().BoolVarP(&headless, "headless", "", true, "Run the browser headless")
	loginCmd.Flags().StringVarP(&chromePath, "chrome", "", "", "Path to the Chrome binary")
}

func loginRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kr, err := lib.OpenKeyring(allowedBackends())
	if err != nil {
		return err
	}

	settings, err := loadSettings(ctx, kr)
	if err != nil {
		return err
	}

	httpClient, err := lib.NewHTTPClient(nil)
	if err != nil {
		return err
	}

	var acquirer lib.TokenAcquirer
	switch grant {
	case grantPassword:
		acquirer = lib.NewPasswordGrant(httpClient)
	case grantMSAL:
		acquirer = &lib.MSALPublicGrant{HTTPClient: httpClient}
	default:
		return ErrUnknownGrant
	}

	seeder := &lib.Seeder{
		Settings: settings,
		Acquirer: acquirer,
	}

	var b *browser.Browser
	switch target {
	case targetFile:
		path, err := homedir.Expand(outputPath)
		if err != nil {
			return err
		}
		seeder.Storage = storage.NewFileStore(path)
		seeder.Navigator = lib.NopNavigator{}
	case targetBrowser:
		b, err = browser.New(ctx, settings.BaseURL, browser.Options{Headless: headless, ExecPath: chromePath})
		if err != nil {
			return err
		}
		defer b.Close()
		seeder.Storage = b
		seeder.Navigator = b
	default:
		return ErrUnknownTarget
	}

	cache := &lib.TokenCache{Keyring: kr}
	var cached *lib.TokenResponse
	if reuse {
		cached, err = cache.Get(settings)
		if err == lib.ErrNoCachedToken {
			log.Debug("No cached token response, logging in")
		} else if err != nil {
			return err
		}
	}

	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tokenResponse, err := seeder.Login(loginCtx, cached)
	if err != nil {
		return xerrors.Errorf("login failed for %s: %w", settings.Username, err)
	}

	if cached == nil {
		cacheTokenResponse(cache, settings, tokenResponse)
	}

	if printToken {
		encoded, err := json.MarshalIndent(tokenResponse, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(encoded))
	}

	if b != nil && waitBrowser {
		log.Infof("Browser is open at %s, press Ctrl-C to close it", b.Resolve(lib.RootPath))
		select {
		case <-ctx.Done():
		case <-b.Done():
		}
	}

	return nil
}

// cacheTokenResponse is best effort: the seeded session is already usable.
func cacheTokenResponse(cache *lib.TokenCache, settings lib.AuthSettings, tokenResponse *lib.TokenResponse) {
	if err := cache.Put(settings, tokenResponse); err != nil {
		log.Warnf("Failed to cache token response, --reuse will log in again: %s", err)
		return
	}
	log.Debugf("Cached token response for %s", settings.Username)
}

func loadSettings(ctx context.Context, kr keyring.Keyring) (lib.AuthSettings, error) {
	settings, err := lib.LoadSettings(ctx, settingsPath, profile)
	if err != nil {
		return settings, err
	}

	resolver := &lib.SecretResolver{Keyring: kr}
	if settings, err = resolver.ResolveSettings(ctx, settings); err != nil {
		return settings, err
	}

	return settings, settings.Validate()
}
