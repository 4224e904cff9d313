package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

type serverConfig struct {
	Addr         string
	ConfigDir    string
	DataDir      string
	ScenarioPath string
	TuningPath   string
	DisableDB    bool

	IndexBackend       string
	IndexEndpoint      string
	IndexToken         string
	IndexBatchSize     int
	IndexFlushMS       int
	AdminToken         string
	CORSOrigins        []string
	DisableHTTPLogging bool
}

type envConfig struct {
	Addr           string   `env:"ENVOY_ADDR" envDefault:":8080"`
	ConfigDir      string   `env:"ENVOY_CONFIG_DIR" envDefault:"./configs"`
	DataDir        string   `env:"ENVOY_DATA_DIR" envDefault:"./data"`
	IndexBackend   string   `env:"ENVOY_INDEX_BACKEND" envDefault:"sqlite"`
	IndexEndpoint  string   `env:"ENVOY_INDEX_ENDPOINT"`
	IndexToken     string   `env:"ENVOY_INDEX_TOKEN"`
	IndexBatchSize int      `env:"ENVOY_INDEX_BATCH_SIZE" envDefault:"128"`
	IndexFlushMS   int      `env:"ENVOY_INDEX_FLUSH_MS" envDefault:"500"`
	AdminToken     string   `env:"ENVOY_ADMIN_TOKEN"`
	CORSOrigins    []string `env:"ENVOY_CORS_ORIGINS" envSeparator:","`
}

// parseConfig reads ENVOY_* variables first; flags given on the command line
// win over them.
func parseConfig(fs *flag.FlagSet, args []string) (serverConfig, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg := serverConfig{
		Addr:           ec.Addr,
		ConfigDir:      ec.ConfigDir,
		DataDir:        ec.DataDir,
		IndexBackend:   ec.IndexBackend,
		IndexEndpoint:  ec.IndexEndpoint,
		IndexToken:     ec.IndexToken,
		IndexBatchSize: ec.IndexBatchSize,
		IndexFlushMS:   ec.IndexFlushMS,
		AdminToken:     ec.AdminToken,
		CORSOrigins:    ec.CORSOrigins,
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory (audit logs, index)")
	fs.StringVar(&cfg.ScenarioPath, "scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
	fs.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", false, "disable the treaty history index")
	fs.StringVar(&cfg.IndexBackend, "index_backend", cfg.IndexBackend, "history index backend: sqlite, remote or none")
	fs.BoolVar(&cfg.DisableHTTPLogging, "quiet_http", false, "disable per-request http logging")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}

	if strings.TrimSpace(cfg.ScenarioPath) == "" {
		cfg.ScenarioPath = filepath.Join(cfg.ConfigDir, "scenario.yaml")
	}
	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	cfg.IndexBackend = strings.ToLower(strings.TrimSpace(cfg.IndexBackend))
	return cfg, nil
}
