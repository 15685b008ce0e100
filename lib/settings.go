package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/vaughan0/go-ini"
	"github.com/viant/afs"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSettingsPath = "~/.aad-seed/authsettings.json"
	DefaultProfile      = "default"
)

var (
	ErrMissingSetting       = errors.New("missing required auth setting")
	ErrUnknownSettingsType  = errors.New("unsupported settings file type")
	ErrProfileNotFound      = errors.New("settings profile not found")
	ErrMissingTokenResponse = errors.New("no token response to inject")
)

// AuthSettings is the identity provider and test user configuration. It is
// loaded once and passed explicitly to everything that needs it.
type AuthSettings struct {
	Authority    string   `json:"authority" yaml:"authority"`
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	APIScopes    []string `json:"apiScopes" yaml:"apiScopes"`
	Username     string   `json:"username" yaml:"username"`
	Password     string   `json:"password" yaml:"password"`
	// BaseURL is the application origin the browser target opens.
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
}

func (s AuthSettings) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"authority", s.Authority},
		{"clientId", s.ClientID},
		{"username", s.Username},
		{"password", s.Password},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return xerrors.Errorf("%s: %w", r.name, ErrMissingSetting)
		}
	}
	if len(s.APIScopes) == 0 {
		return xerrors.Errorf("apiScopes: %w", ErrMissingSetting)
	}
	return nil
}

// TokenURL is the v2 token endpoint of the authority.
func (s AuthSettings) TokenURL() string {
	return strings.TrimRight(s.Authority, "/") + "/oauth2/v2.0/token"
}

// RequestScopes are the scopes sent with the password grant.
func (s AuthSettings) RequestScopes() []string {
	return append([]string{"openid profile"}, s.APIScopes...)
}

// LoadSettings reads settings from location, which is a local path (with ~
// expansion) or any URL afs understands. The file type is picked from the
// extension; ini files hold one section per profile. Environment overrides
// are applied last.
func LoadSettings(ctx context.Context, location, profile string) (AuthSettings, error) {
	var settings AuthSettings

	URL, err := settingsURL(location)
	if err != nil {
		return settings, err
	}
	log.Debugf("Loading auth settings from %s", URL)

	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return settings, xerrors.Errorf("reading settings %s: %w", location, err)
	}

	switch ext := strings.ToLower(path.Ext(URL)); ext {
	case ".json":
		err = json.Unmarshal(data, &settings)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &settings)
	case ".ini", ".cfg", "":
		settings, err = parseINISettings(data, profile)
	default:
		return settings, xerrors.Errorf("%s: %w", ext, ErrUnknownSettingsType)
	}
	if err != nil {
		return settings, xerrors.Errorf("decoding settings %s: %w", location, err)
	}

	return ApplyEnvOverrides(settings), nil
}

// SaveSettings writes settings as JSON or YAML, picked by extension.
func SaveSettings(ctx context.Context, location string, s AuthSettings) error {
	URL, err := settingsURL(location)
	if err != nil {
		return err
	}

	var data []byte
	switch ext := strings.ToLower(path.Ext(URL)); ext {
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		return xerrors.Errorf("%s: %w", ext, ErrUnknownSettingsType)
	}
	if err != nil {
		return err
	}

	log.Debugf("Writing auth settings to %s", URL)
	return afs.New().Upload(ctx, URL, 0o600, bytes.NewReader(data))
}

func settingsURL(location string) (string, error) {
	if location == "" {
		location = DefaultSettingsPath
	}
	if strings.Contains(location, "://") {
		return location, nil
	}
	expanded, err := homedir.Expand(location)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func parseINISettings(data []byte, profile string) (AuthSettings, error) {
	file, err := ini.Load(bytes.NewReader(data))
	if err != nil {
		return AuthSettings{}, err
	}
	if profile == "" {
		profile = DefaultProfile
	}

	section, ok := file[fmt.Sprintf("profile %s", profile)]
	if !ok {
		if section, ok = file[profile]; !ok {
			return AuthSettings{}, xerrors.Errorf("%s: %w", profile, ErrProfileNotFound)
		}
	}

	return AuthSettings{
		Authority:    section["authority"],
		ClientID:     section["client_id"],
		ClientSecret: section["client_secret"],
		APIScopes:    strings.Fields(section["api_scopes"]),
		Username:     section["username"],
		Password:     section["password"],
		BaseURL:      section["base_url"],
	}, nil
}

// ApplyEnvOverrides replaces settings with AAD_* environment variables when
// they are set. A .env file in the working directory is loaded first.
func ApplyEnvOverrides(s AuthSettings) AuthSettings {
	_ = godotenv.Load()

	override := func(name string, target *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			log.Debugf("Using %s from environment", name)
			*target = v
		}
	}
	override("AAD_AUTHORITY", &s.Authority)
	override("AAD_CLIENT_ID", &s.ClientID)
	override("AAD_CLIENT_SECRET", &s.ClientSecret)
	override("AAD_USERNAME", &s.Username)
	override("AAD_PASSWORD", &s.Password)
	override("AAD_BASE_URL", &s.BaseURL)

	if v, ok := os.LookupEnv("AAD_API_SCOPES"); ok && strings.TrimSpace(v) != "" {
		s.APIScopes = strings.Fields(v)
	}
	return s
}
