package enumid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zero-day-ai/enumid/config"
	"github.com/zero-day-ai/enumid/registry"
	"github.com/zero-day-ai/enumid/store"
)

// DefaultStorePath returns the platform-default location of the enum file,
// <user cache dir>/gibson/indices.enum. It falls back to the working
// directory when the user cache directory cannot be resolved.
func DefaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "gibson", "indices.enum")
}

// Open loads an enumid.yaml configuration from path (a file or a directory
// containing one) and returns a registry backed by the configured store.
func Open(ctx context.Context, path string, opts ...registry.Option) (*registry.Registry, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return OpenConfig(ctx, cfg, opts...)
}

// OpenConfig builds the configured store backend and returns a registry
// seeded from it. A nil config opens a file-backed registry at
// DefaultStorePath().
//
// The returned registry should be closed with Close() when a remote
// backend is configured, to release its client connection.
func OpenConfig(ctx context.Context, cfg *config.Config, opts ...registry.Option) (*registry.Registry, error) {
	s, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Capacity > 0 {
		opts = append([]registry.Option{registry.WithCapacity(cfg.Capacity)}, opts...)
	}

	return registry.New(ctx, s, opts...)
}

// newStore constructs the store backend selected by the configuration.
func newStore(cfg *config.Config) (registry.Store, error) {
	switch backend := cfg.GetBackend(); backend {
	case "file":
		path := DefaultStorePath()
		if cfg != nil && cfg.File != nil && cfg.File.Path != "" {
			path = cfg.File.Path
		}
		return store.NewFileStore(path), nil

	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend selected but no redis configuration provided")
		}
		clientTLS, err := storeTLS(cfg.Redis.TLS).ClientConfig()
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(store.RedisOptions{
			URL:            cfg.Redis.URL,
			Key:            cfg.Redis.Key,
			TLS:            clientTLS,
			ConnectTimeout: cfg.Redis.GetConnectTimeout(),
			ReadTimeout:    cfg.Redis.GetReadTimeout(),
			WriteTimeout:   cfg.Redis.GetWriteTimeout(),
		})

	case "etcd":
		if cfg.Etcd == nil {
			return nil, fmt.Errorf("etcd backend selected but no etcd configuration provided")
		}
		return store.NewEtcdStore(store.EtcdOptions{
			Endpoints:   cfg.Etcd.Endpoints,
			Namespace:   cfg.Etcd.Namespace,
			DialTimeout: cfg.Etcd.GetDialTimeout(),
			TLS:         storeTLS(cfg.Etcd.TLS),
		})

	default:
		return nil, fmt.Errorf("unknown enum store backend %q", backend)
	}
}

func storeTLS(cfg *config.TLSConfig) *store.TLSConfig {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &store.TLSConfig{
		Enabled:  true,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
		CAFile:   cfg.CAFile,
	}
}
