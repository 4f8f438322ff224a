package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"marketd/core/types"
	"marketd/native/market"
)

// Config is the marketd node configuration.
type Config struct {
	RPCAddress              string   `toml:"RPCAddress"`
	DataDir                 string   `toml:"DataDir"`
	Env                     string   `toml:"Env"`
	LogFile                 string   `toml:"LogFile"`
	AdminAddress            string   `toml:"AdminAddress"`
	CustodyAddress          string   `toml:"CustodyAddress"`
	ReserveAddress          string   `toml:"ReserveAddress"`
	FeeRecipient            string   `toml:"FeeRecipient,omitempty"`
	FeeRate                 uint64   `toml:"FeeRate"`
	FeeDecimal              uint8    `toml:"FeeDecimal"`
	PaymentTokens           []string `toml:"PaymentTokens"`
	WithdrawCooldownSeconds int64    `toml:"WithdrawCooldownSeconds"`
	RPCRequestsPerMinute    float64  `toml:"RPCRequestsPerMinute"`
	RPCBurst                int      `toml:"RPCBurst"`
}

// Load loads the configuration from the given path. A missing file is
// replaced with a default one, mirroring first-run bootstrap.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8546"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./marketd-data"
	}
	if cfg.WithdrawCooldownSeconds <= 0 {
		cfg.WithdrawCooldownSeconds = 7 * 24 * 60 * 60
	}
	if cfg.RPCRequestsPerMinute <= 0 {
		cfg.RPCRequestsPerMinute = 600
	}
	if cfg.RPCBurst <= 0 {
		cfg.RPCBurst = 20
	}
	if strings.TrimSpace(cfg.FeeRecipient) == "" {
		cfg.FeeRecipient = cfg.ReserveAddress
	}
	if cfg.PaymentTokens == nil {
		cfg.PaymentTokens = []string{}
	}
}

// Validate checks address fields and the fee bound.
func (c *Config) Validate() error {
	required := map[string]string{
		"AdminAddress":   c.AdminAddress,
		"CustodyAddress": c.CustodyAddress,
		"ReserveAddress": c.ReserveAddress,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s must be set", field)
		}
		if _, err := types.ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	if strings.TrimSpace(c.FeeRecipient) != "" {
		if _, err := types.ParseAddress(c.FeeRecipient); err != nil {
			return fmt.Errorf("config: FeeRecipient: %w", err)
		}
	}
	// The reserve engine is bound to the first payment token, so the list
	// must not be empty.
	if len(c.PaymentTokens) == 0 {
		return fmt.Errorf("config: at least one payment token must be configured")
	}
	for _, token := range c.PaymentTokens {
		if _, err := types.ParseAddress(token); err != nil {
			return fmt.Errorf("config: PaymentTokens: %w", err)
		}
	}
	if !(market.FeeConfig{Rate: c.FeeRate, Decimal: c.FeeDecimal}).Valid() {
		return fmt.Errorf("config: fee rate %d with decimal %d reaches 50%%", c.FeeRate, c.FeeDecimal)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:              ":8546",
		DataDir:                 "./marketd-data",
		FeeRate:                 10,
		FeeDecimal:              0,
		WithdrawCooldownSeconds: 7 * 24 * 60 * 60,
		RPCRequestsPerMinute:    600,
		RPCBurst:                20,
		PaymentTokens:           []string{},
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, fmt.Errorf("config: wrote default config to %s; set AdminAddress, CustodyAddress, ReserveAddress and at least one payment token before starting", path)
}
