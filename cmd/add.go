package cmd

import (
	"context"
	"strings"

	"github.com/99designs/keyring"
	"github.com/deamwork/aad-seed/lib"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	addAuthority string
	addClientID  string
	addScopes    string
	addUsername  string
	addBaseURL   string
	addAccount   string
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "store test user credentials in your keyring and write a settings file",
	RunE:  add,
}

func init() {
	RootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addAuthority, "authority", "", "", "Authority, e.g. https://login.microsoftonline.com/<tenant>")
	addCmd.Flags().StringVarP(&addClientID, "client-id", "", "", "Application (client) ID")
	addCmd.Flags().StringVarP(&addScopes, "scopes", "", "", "Space separated API scopes")
	addCmd.Flags().StringVarP(&addUsername, "username", "", "", "Test user name")
	addCmd.Flags().StringVarP(&addBaseURL, "base-url", "", "", "Application base URL")
	addCmd.Flags().StringVarP(&addAccount, "account", "", "", "Name the keyring items are stored under")
}

func add(cmd *cobra.Command, args []string) error {
	kr, err := lib.OpenKeyring(allowedBackends())
	if err != nil {
		log.Fatal(err)
	}

	// Ask for anything not given on the command line
	ask := func(value *string, prompt string) error {
		if *value != "" {
			return nil
		}
		v, err := lib.Prompt(prompt, false)
		if err != nil {
			return err
		}
		if v == "" {
			return ErrFailedToGatherInformation
		}
		*value = v
		return nil
	}
	if err = ask(&addAuthority, "Authority (https://login.microsoftonline.com/<tenant>)"); err != nil {
		return err
	}
	if err = ask(&addClientID, "Application (client) ID"); err != nil {
		return err
	}
	if err = ask(&addScopes, "API scopes, space separated"); err != nil {
		return err
	}
	if err = ask(&addUsername, "Test user name"); err != nil {
		return err
	}
	if addBaseURL == "" {
		if addBaseURL, err = lib.Prompt("Application base URL (optional)", false); err != nil {
			return err
		}
	}

	account := "aad-seed"
	if addAccount != "" {
		account = "aad-seed-" + addAccount
	}
	log.Debugf("Keyring account: %s", account)

	// Ask for secrets from prompt
	password, err := lib.Prompt("Test user password (secure-input)", true)
	if err != nil {
		return err
	}
	if password == "" {
		return ErrFailedToGatherInformation
	}
	clientSecret, err := lib.Prompt("Client secret, empty for public clients (secure-input)", true)
	if err != nil {
		return err
	}

	settings := lib.AuthSettings{
		Authority: addAuthority,
		ClientID:  addClientID,
		APIScopes: strings.Fields(addScopes),
		Username:  addUsername,
		BaseURL:   addBaseURL,
	}

	if settings.Password, err = storeSecret(kr, account+"-password", "aad-seed test user password", password); err != nil {
		return err
	}
	if clientSecret != "" {
		if settings.ClientSecret, err = storeSecret(kr, account+"-client-secret", "aad-seed client secret", clientSecret); err != nil {
			return err
		}
	}

	location := settingsPath
	if location == "" {
		location = lib.DefaultSettingsPath
	}
	if err = lib.SaveSettings(context.Background(), location, settings); err != nil {
		return err
	}

	log.Infof("Added credentials for user %s, settings written to %s", addUsername, location)
	return nil
}

// storeSecret saves a secret and returns the reference to put in settings.
func storeSecret(kr keyring.Keyring, key, label, secret string) (string, error) {
	item := keyring.Item{
		Key:                         key,
		Data:                        []byte(secret),
		Label:                       label,
		KeychainNotTrustApplication: false,
	}

	if err := kr.Set(item); err != nil {
		log.Debugf("Failed to add secret to keyring: %s", err)
		return "", ErrFailedToSetCredentials
	}
	return lib.KeyringSecretPrefix + key, nil
}
