package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"socialtree/crypto"
)

var testAllocAddr = func() string {
	var addr [20]byte
	addr[0] = 0x42
	addr[len(addr)-1] = 0x24
	return crypto.MustNewAddress(crypto.STTPrefix, addr[:]).String()
}()

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := os.Stat(cfg.OwnerKeystorePath); err != nil {
		t.Fatalf("owner keystore not created: %v", err)
	}
	if cfg.NetworkName != "socialtree-local" {
		t.Fatalf("unexpected network name: %s", cfg.NetworkName)
	}

	params, err := cfg.CommissionParams()
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	if params.CommissionRate != 20 || params.MaxReferralDepth != 10 {
		t.Fatalf("unexpected default params: %+v", params)
	}
}

func TestLoadParsesCommissionSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystorePath := filepath.Join(dir, "owner.keystore")
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
NetworkName = "testnet"
OwnerKeystorePath = "%s"

[Commission]
Rate = 25
MinDistributionAmount = "10"
SubscriptionPeriodSeconds = 86400
MaxReferralDepth = 4

[[Genesis]]
Address = "%s"
Balance = "1000000"
`, keystorePath, testAllocAddr)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	params, err := cfg.CommissionParams()
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	if params.CommissionRate != 25 {
		t.Fatalf("rate: want 25 got %d", params.CommissionRate)
	}
	if params.MinDistributionAmount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("min distribution: want 10 got %s", params.MinDistributionAmount)
	}
	if params.SubscriptionPeriod != 86400 {
		t.Fatalf("period: want 86400 got %d", params.SubscriptionPeriod)
	}
	if params.MaxReferralDepth != 4 {
		t.Fatalf("depth: want 4 got %d", params.MaxReferralDepth)
	}

	allocs, err := cfg.GenesisAccounts()
	if err != nil {
		t.Fatalf("genesis failed: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("alloc count: want 1 got %d", len(allocs))
	}
	if allocs[0].Balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("alloc balance: want 1000000 got %s", allocs[0].Balance)
	}
}

func TestCommissionParamsValidation(t *testing.T) {
	cfg := &Config{Commission: CommissionConfig{Rate: 20, MinDistributionAmount: "not-a-number", SubscriptionPeriod: 60, MaxReferralDepth: 2}}
	if _, err := cfg.CommissionParams(); err == nil {
		t.Fatalf("expected invalid amount rejection")
	}

	cfg = &Config{Commission: CommissionConfig{Rate: 150, MinDistributionAmount: "1", SubscriptionPeriod: 60, MaxReferralDepth: 2}}
	if _, err := cfg.CommissionParams(); err == nil {
		t.Fatalf("expected out-of-range rate rejection")
	}

	cfg = &Config{Genesis: []GenesisAlloc{{Address: "not-bech32", Balance: "10"}}}
	if _, err := cfg.GenesisAccounts(); err == nil {
		t.Fatalf("expected invalid genesis address rejection")
	}
}
