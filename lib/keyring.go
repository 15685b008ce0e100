package lib

import (
	"os"

	"github.com/99designs/keyring"
)

const KeyringServiceName = "aad-seed"

func keyringPrompt(prompt string) (string, error) {
	return PromptWithOutput(prompt, true, os.Stderr)
}

func OpenKeyring(allowedBackends []keyring.BackendType) (kr keyring.Keyring, err error) {
	kr, err = keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              KeyringServiceName,
		LibSecretCollectionName:  "aadseed",
		FileDir:                  "~/.aad-seed/keyring/",
		FilePasswordFunc:         keyringPrompt,
	})

	return
}
