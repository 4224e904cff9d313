package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"envoy.ai/internal/persistence/indexdb"
	"envoy.ai/internal/sim/scenario"
	"envoy.ai/internal/sim/session"
	"envoy.ai/internal/sim/tuning"
	"envoy.ai/internal/transport/httpapi"
)

type runtimeIndex interface {
	session.Recorder
	Close() error
}

// metaIndex is implemented by backends that keep scenario and tuning metadata.
type metaIndex interface {
	UpsertMeta(sc *scenario.Scenario, tune tuning.Tuning) error
}

// openRuntimeIndex returns the configured index and, when the backend can
// answer queries, the history store behind the admin API.
func openRuntimeIndex(cfg serverConfig, gameID string, logger *log.Logger) (runtimeIndex, httpapi.HistoryStore, error) {
	if cfg.DisableDB {
		return nil, nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.IndexBackend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "treaties.sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return idx, idx, nil
	case "remote":
		endpoint := strings.TrimSpace(cfg.IndexEndpoint)
		if endpoint == "" {
			return nil, nil, fmt.Errorf("index backend remote but ENVOY_INDEX_ENDPOINT is empty")
		}
		idx, err := indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(cfg.IndexToken),
			GameID:        gameID,
			BatchSize:     cfg.IndexBatchSize,
			FlushInterval: time.Duration(cfg.IndexFlushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return idx, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}
