package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/forumkit/searchd/internal/log"
)

// SearchConfig controls the bleve-backed search indices. When Enabled is
// false every query runs against the primary store instead.
type SearchConfig struct {
	Enabled          bool   `toml:"enabled"`
	IndexDir         string `toml:"index_dir"`
	IndexPrefix      string `toml:"index_prefix"`
	MaxResults       int    `toml:"max_results"`
	SnippetLength    int    `toml:"snippet_length"`
	HighlightWindow  int    `toml:"highlight_window"`
	ReindexBatchSize int    `toml:"reindex_batch_size"`
	ReindexOnStartup bool   `toml:"reindex_on_startup"`
}

// ClientConfig is used by the CLI when talking to a running daemon.
// InsecureSkipVerify disables TLS certificate validation and is meant for
// development setups only.
type ClientConfig struct {
	Endpoint           string `toml:"endpoint"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type Config struct {
	ListenAddr string `toml:"listen_addr"`
	StorePath  string `toml:"store_path"`
	Debug      bool   `toml:"debug"`

	// Optional basic auth protecting mutating endpoints.
	AuthUsername string `toml:"auth_username"`
	AuthPassword string `toml:"auth_password"`

	Search SearchConfig `toml:"search"`
	Client ClientConfig `toml:"client"`
}

func Default() *Config {
	return &Config{
		ListenAddr: ":43690",
		StorePath:  filepath.Join(getDefaultDataDir(), "forum.db"),
		Search: SearchConfig{
			Enabled:          true,
			IndexDir:         filepath.Join(getDefaultDataDir(), "indices"),
			IndexPrefix:      "forumkit",
			MaxResults:       50,
			SnippetLength:    200,
			HighlightWindow:  20,
			ReindexBatchSize: 200,
			ReindexOnStartup: false,
		},
		Client: ClientConfig{
			Endpoint: "http://localhost:43690",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			log.Warnf("failed to create default config at %s: %v", path, err)
		} else {
			log.Infof("created default config at %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	f.WriteString("# searchd configuration\n\n")

	return toml.NewEncoder(f).Encode(c)
}

// IndexName returns the backend index name for a logical index, applying
// the configured prefix.
func (c *SearchConfig) IndexName(logical string) string {
	if c.IndexPrefix == "" {
		return logical
	}
	return c.IndexPrefix + "-" + logical
}

func getDefaultDataDir() string {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
	} else {
		base = os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, "searchd")
}

func GetDefaultConfigPath() string {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "searchd", "config.toml")
}
