package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"socialtree/crypto"
	"socialtree/native/commission"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	DataDir           string `toml:"DataDir"`
	NetworkName       string `toml:"NetworkName"`
	OwnerKeystorePath string `toml:"OwnerKeystorePath"`

	Commission CommissionConfig `toml:"Commission"`
	Genesis    []GenesisAlloc   `toml:"Genesis,omitempty"`
	Telemetry  *TelemetryConfig `toml:"Telemetry,omitempty"`
}

// CommissionConfig mirrors commission.Params with TOML-friendly field types.
type CommissionConfig struct {
	Rate                  uint64 `toml:"Rate"`
	MinDistributionAmount string `toml:"MinDistributionAmount"`
	SubscriptionPeriod    int64  `toml:"SubscriptionPeriodSeconds"`
	MaxReferralDepth      int    `toml:"MaxReferralDepth"`
}

// GenesisAlloc seeds an account balance the first time the node boots.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "socialtree-local"
	}
	applyCommissionDefaults(&cfg.Commission)

	return cfg, nil
}

// CommissionParams converts the TOML commission section into engine params.
func (c *Config) CommissionParams() (commission.Params, error) {
	params := commission.DefaultParams()
	section := c.Commission
	if section.Rate > 0 {
		params.CommissionRate = section.Rate
	}
	if trimmed := strings.TrimSpace(section.MinDistributionAmount); trimmed != "" {
		amount, ok := new(big.Int).SetString(trimmed, 10)
		if !ok {
			return commission.Params{}, fmt.Errorf("config: invalid MinDistributionAmount %q", section.MinDistributionAmount)
		}
		params.MinDistributionAmount = amount
	}
	if section.SubscriptionPeriod > 0 {
		params.SubscriptionPeriod = section.SubscriptionPeriod
	}
	if section.MaxReferralDepth > 0 {
		params.MaxReferralDepth = section.MaxReferralDepth
	}
	if err := params.Validate(); err != nil {
		return commission.Params{}, err
	}
	return params, nil
}

// GenesisAccounts decodes the configured genesis allocations.
func (c *Config) GenesisAccounts() ([]GenesisAccount, error) {
	accounts := make([]GenesisAccount, 0, len(c.Genesis))
	for _, alloc := range c.Genesis {
		addr, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("config: genesis address %q: %w", alloc.Address, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("config: genesis balance %q for %s", alloc.Balance, alloc.Address)
		}
		accounts = append(accounts, GenesisAccount{Address: addr.Bytes20(), Balance: balance})
	}
	return accounts, nil
}

// GenesisAccount is a decoded genesis allocation.
type GenesisAccount struct {
	Address [20]byte
	Balance *big.Int
}

func applyCommissionDefaults(section *CommissionConfig) {
	defaults := commission.DefaultParams()
	if section.Rate == 0 {
		section.Rate = defaults.CommissionRate
	}
	if strings.TrimSpace(section.MinDistributionAmount) == "" {
		section.MinDistributionAmount = defaults.MinDistributionAmount.String()
	}
	if section.SubscriptionPeriod == 0 {
		section.SubscriptionPeriod = defaults.SubscriptionPeriod
	}
	if section.MaxReferralDepth == 0 {
		section.MaxReferralDepth = defaults.MaxReferralDepth
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OwnerKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OwnerKeystorePath != keystorePath {
		cfg.OwnerKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./socialtree-data",
		NetworkName: "socialtree-local",
	}
	cfg.OwnerKeystorePath = keystorePath
	applyCommissionDefaults(&cfg.Commission)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.keystore")
}
