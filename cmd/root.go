package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/99designs/keyring"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Errors returned from frontend commands
var (
	ErrTooManyArguments          = errors.New("too many arguments")
	ErrTooFewArguments           = errors.New("too few arguments")
	ErrFailedToSetCredentials    = errors.New("Failed to set credentials in your keyring")
	ErrFailedToGatherInformation = errors.New("Failed to gather informations")
	ErrUnknownTarget             = errors.New("unknown target, use file or browser")
	ErrUnknownGrant              = errors.New("unknown grant, use password or msal")
)

// global flags
var (
	backend      string
	debug        bool
	version      string
	settingsPath string
	profile      string
	timeout      time.Duration
)

const (
	envBackend  = "AAD_SEED_BACKEND"
	envSettings = "AAD_SEED_SETTINGS"
	envProfile  = "AAD_SEED_PROFILE"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:               "aad-seed",
	Short:             "aad-seed logs a test user into Azure AD and seeds the MSAL.js session cache of a browser",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prerunE,
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(vers string) {
	version = vers
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		switch err {
		case ErrTooFewArguments, ErrTooManyArguments:
			RootCmd.Usage()
		}
		os.Exit(1)
	}
}

func prerunE(cmd *cobra.Command, args []string) error {
	// Load flags from env vars if not set on the command line
	fromEnv := func(flag, env string, target *string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			return
		}
		if v, ok := os.LookupEnv(env); ok {
			*target = v
		}
	}
	fromEnv("backend", envBackend, &backend)
	fromEnv("settings", envSettings, &settingsPath)
	fromEnv("profile", envProfile, &profile)

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	return nil
}

func allowedBackends() []keyring.BackendType {
	var allowed []keyring.BackendType
	if backend != "" {
		allowed = append(allowed, keyring.BackendType(backend))
	}
	return allowed
}

func init() {
	backendsAvailable := []string{}
	for _, backendType := range keyring.AvailableBackends() {
		backendsAvailable = append(backendsAvailable, string(backendType))
	}
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", fmt.Sprintf("Secret backend to use %s", backendsAvailable))
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "Auth settings file or URL (.json, .yaml, .ini)")
	RootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Profile to use from an ini settings file")
	RootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Give up after this long")
}
