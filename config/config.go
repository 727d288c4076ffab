package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"landledger/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML. Missing files are
// created with commented defaults so a fresh checkout boots without manual
// setup.
type Config struct {
	RPCAddress       string `toml:"RPCAddress"`
	DataDir          string `toml:"DataDir"`
	GenesisFile      string `toml:"GenesisFile"`
	AllowAutogenesis bool   `toml:"AllowAutogenesis"`
	NetworkName      string `toml:"NetworkName"`
	AdminKeystore    string `toml:"AdminKeystore"`

	Log     Log     `toml:"Log"`
	RPC     RPC     `toml:"RPC"`
	Archive Archive `toml:"Archive"`
	Audit   Audit   `toml:"Audit"`
	Pauses  Pauses  `toml:"Pauses"`
	Revenue RevenuePolicy `toml:"Revenue"`
	Quota   Quota   `toml:"Quota"`
}

// Log controls structured log output. When File is set, output rotates via
// lumberjack with the supplied limits.
type Log struct {
	Environment string `toml:"Environment"`
	File        string `toml:"File"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
}

// RPC tunes the JSON-RPC surface.
type RPC struct {
	JWTSecret        string `toml:"JWTSecret"`
	RatePerSecond    float64 `toml:"RatePerSecond"`
	RateBurst        int    `toml:"RateBurst"`
	MaxConns         int    `toml:"MaxConns"`
	IdempotencyPath  string `toml:"IdempotencyPath"`
	OTLPEndpoint     string `toml:"OTLPEndpoint"`
	OTLPInsecure     bool   `toml:"OTLPInsecure"`
	TrustProxyHeaders bool  `toml:"TrustProxyHeaders"`
}

// Archive selects the event archive backend. Driver is "sqlite" or
// "postgres"; DSN is the driver connection string (a file path for sqlite).
type Archive struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Audit configures the scheduled reconciliation runs.
type Audit struct {
	PolicyFile string `toml:"PolicyFile"`
	OutputDir  string `toml:"OutputDir"`
	RunHour    int    `toml:"RunHour"`
	RunMinute  int    `toml:"RunMinute"`
}

// Load reads the configuration from the given path, creating a default file
// (and a fresh admin keystore) when the path does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.AdminKeystore == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(path, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(configPath string, cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./land-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "land-local"
	}
	if cfg.RPC.RatePerSecond <= 0 {
		cfg.RPC.RateBurst = 20
		cfg.RPC.RatePerSecond = 10
	}
	if cfg.RPC.RateBurst <= 0 {
		cfg.RPC.RateBurst = 20
	}
	if cfg.RPC.MaxConns <= 0 {
		cfg.RPC.MaxConns = 256
	}
	if strings.TrimSpace(cfg.RPC.IdempotencyPath) == "" {
		cfg.RPC.IdempotencyPath = filepath.Join(cfg.DataDir, "idempotency.db")
	}
	if strings.TrimSpace(cfg.Archive.Driver) == "" {
		cfg.Archive.Driver = "sqlite"
	}
	if cfg.Archive.Driver == "sqlite" && strings.TrimSpace(cfg.Archive.DSN) == "" {
		cfg.Archive.DSN = filepath.Join(cfg.DataDir, "archive.db")
	}
	if strings.TrimSpace(cfg.Audit.OutputDir) == "" {
		cfg.Audit.OutputDir = filepath.Join(cfg.DataDir, "audit")
	}
	_ = configPath
}

// Validate reports the first malformed field. It is called by Load but is
// exported so tests and the CLI can check hand-built configurations.
func (c *Config) Validate() error {
	switch c.Archive.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: Archive.Driver must be sqlite or postgres, got %q", c.Archive.Driver)
	}
	if c.Archive.Driver == "postgres" && strings.TrimSpace(c.Archive.DSN) == "" {
		return fmt.Errorf("config: Archive.DSN required for postgres driver")
	}
	if c.Audit.RunHour < 0 || c.Audit.RunHour > 23 {
		return fmt.Errorf("config: Audit.RunHour out of range: %d", c.Audit.RunHour)
	}
	if c.Audit.RunMinute < 0 || c.Audit.RunMinute > 59 {
		return fmt.Errorf("config: Audit.RunMinute out of range: %d", c.Audit.RunMinute)
	}
	if c.Revenue.MinDepositIntervalSeconds < 0 {
		return fmt.Errorf("config: Revenue.MinDepositIntervalSeconds must not be negative")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("config: Log rotation limits must not be negative")
	}
	return nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := defaultKeystorePath(configPath)
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
	cfg.AdminKeystore = keystorePath
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file alongside a
// fresh admin keystore.
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
		RPCAddress:    ":8080",
		DataDir:       "./land-data",
		NetworkName:   "land-local",
		AdminKeystore: keystorePath,
	}
	applyDefaults(path, cfg)
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
	return filepath.Join(dir, "admin.keystore")
}
