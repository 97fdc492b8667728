package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/lobbynet/internal/config"
)

// Config holds CLI configuration
type Config struct {
	config.Node

	Output  string
	Verbose bool
}

// DefaultConfig returns a Config seeded from the environment and any .env file
func DefaultConfig() (*Config, error) {
	node, err := config.LoadNode()
	if err != nil {
		return nil, err
	}
	if node.TokenFile == "" {
		node.TokenFile = defaultTokenFile()
	}
	return &Config{
		Node:   node,
		Output: "text",
	}, nil
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.TokenFile, []byte(token), 0600)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lobbynet/token"
	}
	return filepath.Join(home, ".lobbynet", "token")
}
