package storage

import (
	"fmt"
	"strings"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/config"
)

// NewStorage opens the adapter registered for cfg.DatabaseType. Adapters
// register themselves from their package init, so the caller must import
// the adapter packages it wants available.
func NewStorage(cfg *config.Config) (Storage, error) {
	storageType := strings.ToLower(cfg.DatabaseType)
	if storageType == "postgresql" {
		storageType = "postgres"
	}

	if !DefaultRegistry.IsRegistered(storageType) {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
	return Create(storageType, cfg)
}
