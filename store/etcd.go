package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdOptions configures the etcd connection for an EtcdStore.
type EtcdOptions struct {
	// Endpoints is the list of etcd endpoints
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string

	// Namespace is the etcd key prefix; the name list is stored under
	// /{namespace}/enum/names. Default: "gibson"
	Namespace string

	// DialTimeout is the maximum time to wait for connection establishment.
	// Default: 5s
	DialTimeout time.Duration

	// TLS holds TLS configuration for secure etcd communication.
	// If nil, TLS is disabled.
	TLS *TLSConfig

	// Logger reports store resets. Default: slog.Default()
	Logger *slog.Logger
}

// EtcdStore persists the ordered name list as a single etcd key holding the
// newline-joined names, in the same line-per-id format as FileStore. It is
// intended for deployments that already run an etcd cluster for component
// discovery and want enum ids shared through the same store.
//
// Each rewrite is a single Put, so readers of the key always observe a
// complete list.
type EtcdStore struct {
	client *clientv3.Client
	key    string
	logger *slog.Logger
}

// NewEtcdStore creates an etcd-backed enum store and verifies connectivity.
// The store must be closed with Close() to release the client connection.
func NewEtcdStore(opts EtcdOptions) (*EtcdStore, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "gibson"
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: dialTimeout,
	}

	tlsConfig, err := opts.TLS.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	clientCfg.TLS = tlsConfig

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("/%s/enum/names", namespace)
	if _, err := cli.Get(ctx, key); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &EtcdStore{
		client: cli,
		key:    key,
		logger: logger,
	}, nil
}

// Load reads the stored name list. A corrupt value is reset to empty rather
// than surfaced, matching the file backend's self-healing behavior.
func (s *EtcdStore) Load(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read enum key: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	names, err := parseNames(resp.Kvs[0].Value)
	if err != nil {
		s.logger.Warn("enum store corrupt, resetting", "key", s.key, "error", err)
		if err := s.Rewrite(ctx, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return names, nil
}

// Rewrite replaces the stored list with the given names in a single Put.
func (s *EtcdStore) Rewrite(ctx context.Context, names []string) error {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if _, err := s.client.Put(ctx, s.key, b.String()); err != nil {
		return fmt.Errorf("failed to rewrite enum key: %w", err)
	}
	return nil
}

// Close closes the etcd client connection.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}
