package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/martinsuchenak/ipusage/internal/cidr"
)

// Inventory sources
const (
	SourceEC2    = "ec2"
	SourceSQLite = "sqlite"
)

// Defaults
const (
	DefaultProfile    = "default"
	DefaultRegion     = "ap-southeast-2"
	DefaultDBPath     = "./data/inventory.db"
	DefaultListenAddr = ":8080"
)

// Config holds the application configuration
type Config struct {
	Profile      string // AWS shared config profile
	Region       string // AWS region
	Source       string // "ec2" or "sqlite" (default: "ec2")
	DBPath       string // SQLite inventory file (sqlite source only)
	MaxAddresses int    // Largest block that will be enumerated
	PageSize     int    // Records requested per inventory page (0 = source default)
	NoColor      bool
	ListenAddr   string // MCP server listen address
	MCPAuthToken string // MCP bearer token (empty = no authentication)
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Command-line parameters (passed as opts)
// 2. Environment variables (a .env file is loaded into the environment by main)
// 3. Default values
func Load(opts *Config) *Config {
	cfg := &Config{
		Profile:      coalesce(os.Getenv("IPUSAGE_PROFILE"), os.Getenv("AWS_PROFILE"), DefaultProfile),
		Region:       coalesce(os.Getenv("IPUSAGE_REGION"), os.Getenv("AWS_REGION"), DefaultRegion),
		Source:       coalesce(os.Getenv("IPUSAGE_SOURCE"), SourceEC2),
		DBPath:       coalesce(os.Getenv("IPUSAGE_DB_PATH"), DefaultDBPath),
		MaxAddresses: envInt("IPUSAGE_MAX_ADDRESSES", cidr.DefaultMaxAddresses),
		PageSize:     envInt("IPUSAGE_PAGE_SIZE", 0),
		NoColor:      envBool("IPUSAGE_NO_COLOR") || os.Getenv("NO_COLOR") != "",
		ListenAddr:   coalesce(os.Getenv("IPUSAGE_LISTEN_ADDR"), DefaultListenAddr),
		MCPAuthToken: os.Getenv("IPUSAGE_MCP_TOKEN"),
	}

	// CLI opts have the highest priority
	if opts != nil {
		if opts.Profile != "" {
			cfg.Profile = opts.Profile
		}
		if opts.Region != "" {
			cfg.Region = opts.Region
		}
		if opts.Source != "" {
			cfg.Source = opts.Source
		}
		if opts.DBPath != "" {
			cfg.DBPath = opts.DBPath
		}
		if opts.MaxAddresses != 0 {
			cfg.MaxAddresses = opts.MaxAddresses
		}
		if opts.PageSize != 0 {
			cfg.PageSize = opts.PageSize
		}
		if opts.NoColor {
			cfg.NoColor = true
		}
		if opts.ListenAddr != "" {
			cfg.ListenAddr = opts.ListenAddr
		}
		if opts.MCPAuthToken != "" {
			cfg.MCPAuthToken = opts.MCPAuthToken
		}
	}

	// Validate source
	cfg.Source = strings.ToLower(cfg.Source)
	if cfg.Source != SourceEC2 && cfg.Source != SourceSQLite {
		cfg.Source = SourceEC2
	}

	if cfg.MaxAddresses <= 0 {
		cfg.MaxAddresses = cidr.DefaultMaxAddresses
	}
	if cfg.PageSize < 0 {
		cfg.PageSize = 0
	}

	return cfg
}

// IsMCPAuthEnabled checks if MCP authentication is configured
func (c *Config) IsMCPAuthEnabled() bool {
	return c.MCPAuthToken != ""
}

// String returns a short description of the inventory source
func (c *Config) String() string {
	if c.Source == SourceSQLite {
		return fmt.Sprintf("sqlite inventory (%s)", c.DBPath)
	}
	return fmt.Sprintf("ec2 inventory (profile %s, region %s)", c.Profile, c.Region)
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}
