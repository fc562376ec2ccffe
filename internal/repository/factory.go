package repository

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/repository/memory"
	"github.com/navikt/zspatial/internal/repository/redis"
)

var log = logging.Logger("repository")

// NewRepository returns the Redis repository when enabled, otherwise the in-memory one
func NewRepository(cfg config.RedisConfig) (Repository, error) {
	if !cfg.Enabled {
		log.Infof("Using in-memory room repository")
		return memory.NewRepository(), nil
	}

	repo, err := redis.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis repository: %w", err)
	}
	log.Infof("Using Redis room repository (prefix %q, ttl %s)", cfg.KeyPrefix, cfg.SnapshotTTL)
	return repo, nil
}
