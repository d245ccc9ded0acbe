package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bimakw/dex-client/internal/wallet"
)

const (
	DefaultPath    = "config.yml"
	DefaultEnvFile = ".env"
)

// Config is the full application configuration
type Config struct {
	Stage          string    `yaml:"stage"`
	LogLevel       string    `yaml:"log_level"`
	DefaultChainID uint64    `yaml:"default_chain_id"`
	Networks       []Network `yaml:"networks"`
	PriceAPI       PriceAPI  `yaml:"price_api"`
	Wallet         Wallet    `yaml:"wallet"`
	Quote          Quote     `yaml:"quote"`
	Redis          Redis     `yaml:"redis"`
	Storage        Storage   `yaml:"storage"`
	HTTP           HTTP      `yaml:"http"`
}

// Network holds per-chain constants: RPC, explorer and the DEX contracts
type Network struct {
	Name           string         `yaml:"name"`
	ChainID        uint64         `yaml:"chain_id"`
	RPCURL         string         `yaml:"rpc_url"`
	ExplorerURL    string         `yaml:"explorer_url"`
	NativeCurrency NativeCurrency `yaml:"native_currency"`
	Router         string         `yaml:"router"`
	Factory        string         `yaml:"factory"`
	WrappedNative  string         `yaml:"wrapped_native"`
}

type NativeCurrency struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type PriceAPI struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

type Wallet struct {
	// Namespace is the dedicated global the wallet injects
	Namespace string `yaml:"namespace"`
	// Flag is the capability flag set on the generic injected object
	Flag         string        `yaml:"flag"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	// PrivateKey backs the local development wallet; empty means no wallet
	PrivateKey string `yaml:"private_key"`
}

type Quote struct {
	Debounce        time.Duration `yaml:"debounce"`
	DefaultSlippage float64       `yaml:"default_slippage"`
	Deadline        time.Duration `yaml:"deadline"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type HTTP struct {
	Port string `yaml:"port"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Stage:          "dev",
		LogLevel:       "info",
		DefaultChainID: 1,
		Networks: []Network{
			{
				Name:           "Ethereum",
				ChainID:        1,
				RPCURL:         "https://eth.llamarpc.com",
				ExplorerURL:    "https://etherscan.io",
				NativeCurrency: NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
				Router:         "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
				Factory:        "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				WrappedNative:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			},
			{
				Name:           "Sepolia",
				ChainID:        11155111,
				RPCURL:         "https://ethereum-sepolia-rpc.publicnode.com",
				ExplorerURL:    "https://sepolia.etherscan.io",
				NativeCurrency: NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
				Router:         "0xeE567Fe1712Faf6149d80dA1E6934E354124CfE3",
				Factory:        "0xF62c03E08ada871A0bEb309762E260a7a6a880E6",
				WrappedNative:  "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
			},
		},
		PriceAPI: PriceAPI{
			BaseURL:    "https://api.dexscreener.com",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			CacheTTL:   30 * time.Second,
		},
		Wallet: Wallet{
			Namespace:    "starkey",
			Flag:         "isStarKey",
			PollInterval: time.Second,
			SettleDelay:  500 * time.Millisecond,
		},
		Quote: Quote{
			Debounce:        400 * time.Millisecond,
			DefaultSlippage: 0.5,
			Deadline:        20 * time.Minute,
		},
		Storage: Storage{Path: "data/storage.json"},
		HTTP:    HTTP{Port: "8080"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists), an optional .env file and the environment, then validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// A missing .env file is fine
	_ = godotenv.Load(DefaultEnvFile)

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.HTTP.Port = getEnv("PORT", c.HTTP.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Stage = getEnv("STAGE", c.Stage)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.PriceAPI.BaseURL = getEnv("PRICE_API_URL", c.PriceAPI.BaseURL)
	c.Wallet.PrivateKey = getEnv("WALLET_PRIVATE_KEY", c.Wallet.PrivateKey)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)
	if v := getEnv("DEFAULT_CHAIN_ID", ""); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.DefaultChainID = id
		}
	}
}

// Validate checks that the default network exists and every network carries
// its contract addresses
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	seen := make(map[uint64]bool, len(c.Networks))
	for _, n := range c.Networks {
		if n.ChainID == 0 {
			return fmt.Errorf("network %q: chain_id is required", n.Name)
		}
		if seen[n.ChainID] {
			return fmt.Errorf("network %q: duplicate chain_id %d", n.Name, n.ChainID)
		}
		seen[n.ChainID] = true
		if n.RPCURL == "" {
			return fmt.Errorf("network %q: rpc_url is required", n.Name)
		}
		for field, addr := range map[string]string{
			"router":         n.Router,
			"factory":        n.Factory,
			"wrapped_native": n.WrappedNative,
		} {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("network %q: %s %q is not an address", n.Name, field, addr)
			}
		}
	}
	if !seen[c.DefaultChainID] {
		return fmt.Errorf("default_chain_id %d is not a configured network", c.DefaultChainID)
	}
	if c.Quote.DefaultSlippage < 0 || c.Quote.DefaultSlippage >= 50 {
		return fmt.Errorf("quote.default_slippage must be at least 0 and below 50")
	}
	if c.PriceAPI.CacheTTL <= 0 {
		return fmt.Errorf("price_api.cache_ttl must be positive")
	}
	return nil
}

// Network returns the configuration for chainID
func (c *Config) Network(chainID uint64) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// DefaultNetwork returns the network the session is expected to be on
func (c *Config) DefaultNetwork() Network {
	n, _ := c.Network(c.DefaultChainID)
	return n
}

// WalletNetworks returns add-network metadata for every configured chain
func (c *Config) WalletNetworks() map[uint64]wallet.NetworkParams {
	out := make(map[uint64]wallet.NetworkParams, len(c.Networks))
	for _, n := range c.Networks {
		out[n.ChainID] = n.WalletNetwork()
	}
	return out
}

// WalletNetwork converts the network into an add-network request
func (n Network) WalletNetwork() wallet.NetworkParams {
	p := wallet.NetworkParams{
		ChainID:   wallet.ChainIDToHex(n.ChainID),
		ChainName: n.Name,
		NativeCurrency: wallet.NativeCurrency{
			Name:     n.NativeCurrency.Name,
			Symbol:   n.NativeCurrency.Symbol,
			Decimals: n.NativeCurrency.Decimals,
		},
		RPCURLs: []string{n.RPCURL},
	}
	if n.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{n.ExplorerURL}
	}
	return p
}

func (n Network) RouterAddress() common.Address        { return common.HexToAddress(n.Router) }
func (n Network) FactoryAddress() common.Address       { return common.HexToAddress(n.Factory) }
func (n Network) WrappedNativeAddress() common.Address { return common.HexToAddress(n.WrappedNative) }

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}
