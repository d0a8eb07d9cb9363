package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"accounts": [
			{"owner": "alice", "username": "alice@corp.cn", "password": "s3cret"},
			{"owner": "bob", "username": "bob@corp.cn", "password": "hunter2"}
		],
		"settings": {
			"browser_path": "/usr/bin/chromium",
			"download_path": "/data/exports",
			"start_date": "2024-01-01"
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "alice", cfg.Accounts[0].Owner)
	assert.Equal(t, "bob@corp.cn", cfg.Accounts[1].Username)
	assert.Equal(t, "/usr/bin/chromium", cfg.Settings.BrowserPath)
	assert.Equal(t, "/data/exports", cfg.Settings.DownloadPath)
	assert.Equal(t, "2024-01-01", cfg.Settings.StartDate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{"accounts": [`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Accounts: []Account{{Owner: "alice", Username: "u", Password: "p"}},
			Settings: Settings{DownloadPath: "/data", StartDate: "2024-01-01"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no accounts", func(c *Config) { c.Accounts = nil }, true},
		{"missing owner", func(c *Config) { c.Accounts[0].Owner = "" }, true},
		{"missing username", func(c *Config) { c.Accounts[0].Username = "" }, true},
		{"missing password", func(c *Config) { c.Accounts[0].Password = "" }, true},
		{"missing download path", func(c *Config) { c.Settings.DownloadPath = "" }, true},
		{"missing start date", func(c *Config) { c.Settings.StartDate = "" }, true},
		{"bad start date", func(c *Config) { c.Settings.StartDate = "01/02/2024" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
