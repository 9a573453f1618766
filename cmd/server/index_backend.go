package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"simbridge.dev/internal/catalogs"
	"simbridge.dev/internal/persistence/indexdb"
	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/bridge"
)

type runtimeIndex interface {
	bridge.Audit
	Close() error
	UpsertCatalogs(cats *catalogs.Catalogs) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// openRuntimeIndex opens the read-model index. SIMBRIDGE_INDEX_BACKEND
// selects the backend: sqlite (default) or none.
func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SIMBRIDGE_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "bridge.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		logger.Printf("index backend: sqlite %s", dbPath)
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown SIMBRIDGE_INDEX_BACKEND %q", backend)
	}
}
