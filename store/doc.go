// Package store provides durable backends for the enum id registry.
//
// A store persists the ordered list of registered names; the position of a
// name in the list (1-based) is its id. Because ids are derived purely from
// position, every write replaces the complete list rather than appending,
// and the order returned by Load is authoritative across restarts.
//
// # Backends
//
// Three backends are available:
//
//   - FileStore: a flat UTF-8 text file, one name per line. The default,
//     and the only backend most deployments need.
//   - RedisStore: a Redis list, for components that share a Redis instance
//     and run on ephemeral disk.
//   - EtcdStore: a single etcd key, for deployments that already run etcd
//     for component discovery.
//
// # Usage
//
// Construct a backend and hand it to the registry:
//
//	s := store.NewFileStore("/var/lib/gibson/indices.enum")
//	reg, err := registry.New(ctx, s)
//
// Or use a shared Redis instance:
//
//	s, err := store.NewRedisStore(store.RedisOptions{
//	    URL: "redis://localhost:6379",
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// # Corruption Handling
//
// Load is self-healing: a missing or corrupt store (unreadable file,
// invalid UTF-8, blank or duplicate entries) resets to an empty list and
// rewrites the backing storage, logging a warning. Rewrite failures are
// always surfaced, because an id that was handed out but not persisted
// would violate the restart stability guarantee.
//
// # Concurrency
//
// The registry serializes all store calls under its allocation lock;
// backends only need to keep individual Load and Rewrite operations
// internally consistent.
package store
