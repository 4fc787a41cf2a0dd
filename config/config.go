package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"keydrop/core/types"
)

// Config is the daemon configuration, stored as TOML.
type Config struct {
	RPCAddress      string   `toml:"RPCAddress"`
	MetricsAddress  string   `toml:"MetricsAddress"`
	DataDir         string   `toml:"DataDir"`
	ContractAccount string   `toml:"ContractAccount"`
	NetworkName     string   `toml:"NetworkName"`
	GenesisBalance  string   `toml:"GenesisBalance"`
	PausedModules   []string `toml:"PausedModules"`
}

// Load reads the configuration from path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:      "127.0.0.1:8645",
		MetricsAddress:  "127.0.0.1:9465",
		DataDir:         "./keydrop-data",
		ContractAccount: "keydrop",
		NetworkName:     "keydrop-local",
		GenesisBalance:  "1000000000000000000000000000",
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, err := types.ParseAccountID(c.ContractAccount); err != nil {
		return fmt.Errorf("config: ContractAccount: %w", err)
	}
	if _, ok := c.ParseGenesisBalance(); !ok {
		return fmt.Errorf("config: GenesisBalance %q is not a valid amount", c.GenesisBalance)
	}
	return nil
}

// ParseGenesisBalance returns the configured initial contract balance.
func (c *Config) ParseGenesisBalance() (*big.Int, bool) {
	trimmed := strings.TrimSpace(c.GenesisBalance)
	if trimmed == "" {
		return big.NewInt(0), true
	}
	balance, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || balance.Sign() < 0 {
		return nil, false
	}
	return balance, true
}

// Pauses returns a pause view backed by the PausedModules list.
func (c *Config) Pauses() Pauses {
	paused := make(Pauses, len(c.PausedModules))
	for _, module := range c.PausedModules {
		if trimmed := strings.TrimSpace(module); trimmed != "" {
			paused[trimmed] = struct{}{}
		}
	}
	return paused
}

// Pauses is a static pause view derived from configuration.
type Pauses map[string]struct{}

// IsPaused reports whether the named module is paused.
func (p Pauses) IsPaused(module string) bool {
	_, ok := p[module]
	return ok
}
