// Package config loads and validates the exporter's JSON configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DateFormat is the wire format for dates in the config file and on the
// portal's date picker inputs.
const DateFormat = "2006-01-02"

// Account holds one portal login and the owner tag stamped into the
// downloaded filenames.
type Account struct {
	Owner    string `mapstructure:"owner"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Settings holds run-wide options shared by all accounts.
type Settings struct {
	BrowserPath  string `mapstructure:"browser_path"`
	DownloadPath string `mapstructure:"download_path"`
	StartDate    string `mapstructure:"start_date"`
}

// Config is the full configuration file.
type Config struct {
	Accounts []Account `mapstructure:"accounts"`
	Settings Settings  `mapstructure:"settings"`
}

// Load reads a JSON configuration file from path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return errors.New("config: at least one account is required")
	}
	for i, a := range c.Accounts {
		if a.Owner == "" {
			return fmt.Errorf("config: accounts[%d]: owner is required", i)
		}
		if a.Username == "" {
			return fmt.Errorf("config: accounts[%d] (%s): username is required", i, a.Owner)
		}
		if a.Password == "" {
			return fmt.Errorf("config: accounts[%d] (%s): password is required", i, a.Owner)
		}
	}
	if c.Settings.DownloadPath == "" {
		return errors.New("config: settings.download_path is required")
	}
	if c.Settings.StartDate == "" {
		return errors.New("config: settings.start_date is required")
	}
	if _, err := time.Parse(DateFormat, c.Settings.StartDate); err != nil {
		return fmt.Errorf("config: settings.start_date must be YYYY-MM-DD: %w", err)
	}
	return nil
}
