// Package enumid provides stable, durable integer ids for named resources
// in the Gibson Framework ecosystem.
//
// Gibson components such as indices and caches are addressed internally by
// small dense numeric ids rather than strings. This module is the registry
// that hands those ids out: it guarantees that a given name maps to the
// same id for the lifetime of an installation, across process restarts,
// and that no two components can silently claim each other's names.
//
// # Core Concepts
//
//   - Registry: the in-process allocation, lookup, and removal surface
//     (package registry)
//   - Handle: the unique in-process object representing a name's id
//   - Owner: the self-declared identity of the registering component,
//     recorded for collision diagnostics
//   - Durable enum store: the backend persisting the ordered name list;
//     the position of a name is its id (package store)
//
// # Usage
//
// Most callers open a registry from configuration:
//
//	reg, err := enumid.Open(ctx, "/etc/gibson")
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	h, err := reg.Register(ctx, "trigram.index", registry.Owner("search"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(h.UniqueID()) // stable across restarts
//
// Components that manage their own store wiring construct the pieces
// directly:
//
//	s := store.NewFileStore(enumid.DefaultStorePath())
//	reg, err := registry.New(ctx, s)
//
// # Configuration
//
// The enumid.yaml file selects the store backend and its settings:
//
//	backend: file
//	file:
//	  path: /var/lib/gibson/indices.enum
//
// Redis and etcd backends are available for deployments where the enum
// state must be shared off the local disk; see package config.
package enumid
