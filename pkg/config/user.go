package config

import (
	"github.com/creasty/defaults"
	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/rmasync/pkg/errors"
)

const (
	// UserConfigPath is the default path to the user config.
	UserConfigPath = "~/.rma.yaml"

	// InitialUserConfigVersion is the first version of the user config.
	// Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the version of the user config that
	// this binary understands.
	SupportedUserConfigVersion = "v1alpha1"
)

// User holds the settings that would otherwise have to be passed on every
// invocation. Flags take precedence over these values.
type User struct {
	Version string `json:"version,omitempty"`

	// User is the account name on the server.
	User string `json:"user,omitempty"`

	Host string `json:"host,omitempty" default:"sftp.news.refinitiv.com" validate:"hostname|hostname_port"`

	// Key is the path to the private key. It defaults to ~/.ssh/<user>.
	Key string `json:"key,omitempty"`

	Prefix string `json:"prefix,omitempty" default:"/mrn-mi-w/PRO/MI4" validate:"startswith=/"`

	// Template is the remote directory layout. It's detected from the
	// server if it's empty.
	Template string `json:"template,omitempty" validate:"omitempty,contains={bucket}"`

	Trial bool `json:"trial,omitempty"`

	CacheDir string `json:"cacheDir,omitempty" default:"~/.rma/cache"`

	// KnownHosts is used to verify the server's host key.
	KnownHosts string `json:"knownHosts,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{}, errors.NewFriendlyError("The user config "+
				"file doesn't exist at %q. Please run `rma config` "+
				"to create it.", path)
		}
		return User{}, errors.WithContext(err, "parse")
	}
	return config, nil
}

// ParseUserOrDefault returns the user config, or the defaults if no config
// file has been written yet.
func ParseUserOrDefault() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return User{}, errors.WithContext(err, "stat config")
	}

	if !exists {
		config := User{Version: SupportedUserConfigVersion}
		if err := defaults.Set(&config); err != nil {
			return User{}, errors.WithContext(err, "set defaults")
		}
		return config, nil
	}
	return ParseUser()
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	if err := defaults.Set(&cfg); err != nil {
		return errors.WithContext(err, "set defaults")
	}
	if err := validateConfig(path, cfg); err != nil {
		return err
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's configuration. This path
// is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
