// Package registry implements the process-wide name-to-id registry used to
// assign stable numeric identifiers to named Gibson resources such as
// indices and caches.
//
// # Guarantees
//
//   - Ids are dense positive integers in [1, MaxIDs], assigned in
//     registration order.
//   - The same name always maps to the same id, across restarts, backed by
//     a durable enum store.
//   - An id is never reassigned to a different name, even after the
//     original name is unregistered.
//   - Handles are unique per name for the process lifetime: every
//     resolution of a name returns the same *Handle instance.
//
// # Usage
//
//	s := store.NewFileStore(path)
//	reg, err := registry.New(ctx, s)
//	if err != nil {
//	    return err
//	}
//
//	h, err := reg.Register(ctx, "trigram.index", registry.Owner("search"))
//	if err != nil {
//	    return err
//	}
//	// h.UniqueID() is stable across restarts.
//
// Lookups do not allocate:
//
//	if h, ok := reg.FindByID(12); ok {
//	    fmt.Println(h.Name())
//	}
//
// # Ownership
//
// Each registration records an Owner, the self-declared identity of the
// registering component. Owner-checked operations (FindByNameFor, and
// Register against a live handle) fail loudly with ErrOwnershipConflict
// when two components contend for the same name; the error context carries
// the original registration's owner, timestamp, and stack trace.
//
// # Thread Safety
//
// All methods are safe for concurrent use. New-name registration
// serializes under an exclusive lock and blocks on the store rewrite;
// FindByID is a lock-free concurrent map read.
package registry
