package main

import (
	"flag"
	"io"
	"log"
	"path/filepath"
	"testing"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.IndexBackend != "sqlite" || cfg.IndexBatchSize != 128 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.ScenarioPath != filepath.Join("./configs", "scenario.yaml") || cfg.TuningPath != filepath.Join("./configs", "tuning.yaml") {
		t.Fatalf("paths: %q %q", cfg.ScenarioPath, cfg.TuningPath)
	}
}

func TestParseConfig_EnvThenFlags(t *testing.T) {
	t.Setenv("ENVOY_ADDR", ":9000")
	t.Setenv("ENVOY_DATA_DIR", "/tmp/envoy")
	t.Setenv("ENVOY_INDEX_BACKEND", "Remote")
	t.Setenv("ENVOY_ADMIN_TOKEN", "s3cret")
	t.Setenv("ENVOY_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := parseConfig(newFlagSet(), []string{"-addr", ":7000", "-configs", "/etc/envoy"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("flag must win over env: %q", cfg.Addr)
	}
	if cfg.DataDir != "/tmp/envoy" || cfg.AdminToken != "s3cret" || cfg.IndexBackend != "remote" {
		t.Fatalf("env: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
	if cfg.ScenarioPath != filepath.Join("/etc/envoy", "scenario.yaml") {
		t.Fatalf("scenario path: %q", cfg.ScenarioPath)
	}
}

func TestParseConfig_BadEnv(t *testing.T) {
	t.Setenv("ENVOY_INDEX_BATCH_SIZE", "lots")
	if _, err := parseConfig(newFlagSet(), nil); err == nil {
		t.Fatalf("expected error for non-numeric batch size")
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	idx, hist, err := openRuntimeIndex(serverConfig{DisableDB: true}, "g", logger)
	if err != nil || idx != nil || hist != nil {
		t.Fatalf("disabled: %v %v %v", idx, hist, err)
	}
	if _, _, err := openRuntimeIndex(serverConfig{IndexBackend: "remote"}, "g", logger); err == nil {
		t.Fatalf("remote without endpoint must fail")
	}
	if _, _, err := openRuntimeIndex(serverConfig{IndexBackend: "mongo"}, "g", logger); err == nil {
		t.Fatalf("unknown backend must fail")
	}

	idx, hist, err = openRuntimeIndex(serverConfig{IndexBackend: "sqlite", DataDir: t.TempDir()}, "g", logger)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if hist == nil {
		t.Fatalf("sqlite backend must serve history")
	}
	if _, ok := idx.(metaIndex); !ok {
		t.Fatalf("sqlite backend must keep metadata")
	}
}
