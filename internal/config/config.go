// Package config loads backvet configuration from defaults, an optional TOML
// file, environment variables, and CLI flags, in that priority order.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries everything the validator entry points need. It is built once
// at startup and passed explicitly; nothing reads ambient globals after Load.
type Config struct {
	OrgURL  string `toml:"org_url"`
	Project string `toml:"project"`
	Team    string `toml:"team"`
	Token   string `toml:"token"`

	TimeoutSeconds int    `toml:"timeout_seconds"`
	DBPath         string `toml:"db_path"`
	SnapshotPath   string `toml:"snapshot_path"`
	Verbose        bool   `toml:"verbose"`
}

const configFileName = "backvet.toml"

// Load resolves configuration in priority order:
//  1. defaults
//  2. .backvet/backvet.toml in the current directory, if present
//  3. environment variables
//  4. CLI flags registered on fs (override everything)
//
// Returns the config and the remaining non-flag arguments.
func Load(fs *flag.FlagSet, args []string) (*Config, []string, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if path := findConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)

	registerFlags(cfg, fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parsing flags: %w", err)
	}

	return cfg, fs.Args(), nil
}

func setDefaults(cfg *Config) {
	cfg.TimeoutSeconds = 30
	cfg.DBPath = filepath.Join(".backvet", "backvet.db")
	cfg.SnapshotPath = filepath.Join(".backvet", "snapshot.jsonl")
}

func findConfigFile() string {
	path := filepath.Join(".backvet", configFileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// loadFromEnv overrides config from environment variables. The token falls
// back through two well-known variables so the tool picks up both a locally
// exported PAT and the token a CI pipeline injects.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("BACKVET_ORG_URL"); v != "" {
		cfg.OrgURL = v
	}
	if v := os.Getenv("BACKVET_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("BACKVET_TEAM"); v != "" {
		cfg.Team = v
	}
	if v := os.Getenv("AZURE_DEVOPS_EXT_PAT"); v != "" {
		cfg.Token = v
	} else if v := os.Getenv("SYSTEM_ACCESSTOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("BACKVET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
}

func registerFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.OrgURL, "org-url", cfg.OrgURL, "Organization URL of the tracking service")
	fs.StringVar(&cfg.Project, "project", cfg.Project, "Project name")
	fs.StringVar(&cfg.Team, "team", cfg.Team, "Team name")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Personal access token")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "HTTP timeout in seconds")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the run history database")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "Path to the history snapshot file")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
}

// Validate reports every missing required field at once.
func (cfg *Config) Validate() error {
	var missing []string
	if cfg.OrgURL == "" {
		missing = append(missing, "organization URL (-org-url or BACKVET_ORG_URL)")
	}
	if cfg.Project == "" {
		missing = append(missing, "project (-project or BACKVET_PROJECT)")
	}
	if cfg.Team == "" {
		missing = append(missing, "team (-team or BACKVET_TEAM)")
	}
	if cfg.Token == "" {
		missing = append(missing, "access token (-token, AZURE_DEVOPS_EXT_PAT or SYSTEM_ACCESSTOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, "; "))
	}
	return nil
}

func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}
