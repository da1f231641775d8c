package authsdk

import (
	"context"

	"github.com/aussiebroadwan/authkit/pkg/storage"
	"github.com/aussiebroadwan/authkit/pkg/storage/drivers/redis"
	"github.com/aussiebroadwan/authkit/pkg/storage/drivers/sqlite"
)

// backendCustom is reported by StorageBackend for caller-supplied adapters.
const backendCustom = "custom"

// openStorage picks the adapter named by cfg. A backend that cannot be
// opened degrades to memory with a warning rather than failing New.
func openStorage(ctx context.Context, cfg *Config) (storage.Adapter, string) {
	if cfg.StorageAdapter != nil {
		return cfg.StorageAdapter, backendCustom
	}

	log := cfg.Logger.With("storage", string(cfg.Storage))

	switch cfg.Storage {
	case storage.KindMemory:
		return storage.NewMemory(), string(storage.KindMemory)

	case storage.KindSession:
		return storage.Session(), string(storage.KindSession)

	case storage.KindRedis:
		s, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis storage unavailable, using memory storage", "err", err)
			return storage.NewMemory(), string(storage.KindMemory)
		}
		return s, string(storage.KindRedis)

	default:
		path := cfg.StoragePath
		if path == "" {
			p, err := sqlite.DefaultPath()
			if err != nil {
				log.Warn("local storage unavailable, using memory storage", "err", err)
				return storage.NewMemory(), string(storage.KindMemory)
			}
			path = p
		}

		s, err := sqlite.Open(ctx, path)
		if err != nil {
			log.Warn("local storage unavailable, using memory storage", "path", path, "err", err)
			return storage.NewMemory(), string(storage.KindMemory)
		}
		return s, string(storage.KindLocal)
	}
}
