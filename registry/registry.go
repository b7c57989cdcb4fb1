package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the otel instrumentation scope for this package.
const instrumentationName = "github.com/zero-day-ai/enumid/registry"

// Store persists the ordered name list across restarts. Element i of the
// list durably maps to id i+1, so Rewrite must always receive the complete
// history in order, never a delta.
//
// Load must be self-healing: a missing or corrupt backing store is reset to
// empty rather than surfaced as an error. Rewrite failures are fatal to the
// triggering allocation and must be reported.
//
// The registry serializes all Load and Rewrite calls under its allocation
// lock; implementations need no additional synchronization for correctness.
type Store interface {
	// Load reads the full ordered name list. A missing or corrupt store
	// yields an empty list after resetting the backing storage.
	Load(ctx context.Context) ([]string, error)

	// Rewrite atomically replaces the stored list with the given names.
	Rewrite(ctx context.Context, names []string) error
}

// Registry is the process-wide name-to-id allocation, lookup, and removal
// surface. All methods are safe for concurrent use.
//
// The allocation path (new-name registration and the store rewrite it
// triggers) serializes under a single exclusive lock and may block on I/O.
// FindByID reads a concurrent map and never takes the lock.
type Registry struct {
	store    Store
	logger   *slog.Logger
	capacity int
	tracer   trace.Tracer
	metrics  *metrics

	// mu guards ids, names, handles, owners, records, and every store write.
	// The in-memory index and the durable store are never observed out of
	// sync because both change only under this lock.
	mu      sync.RWMutex
	ids     map[string]ID
	names   []string
	handles map[ID]*Handle
	owners  map[ID]Owner
	records map[ID]Registration

	// live holds the id -> *Handle table for currently registered names.
	// Lookups by id vastly outnumber registrations, so reads are lock-free.
	live sync.Map
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCapacity lowers the maximum number of distinct names the registry will
// allocate. Values outside [1, MaxIDs] are clamped to MaxIDs. Intended for
// tests and for deployments that reserve part of the id space.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n >= 1 && n <= MaxIDs {
			r.capacity = n
		}
	}
}

// WithMeter sets the otel meter used for registry counters.
// Defaults to the global meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(r *Registry) {
		r.metrics = newMetrics(meter, r.logger)
	}
}

// WithTracerProvider sets the tracer provider used to trace allocations.
// Defaults to the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) {
		if tp != nil {
			r.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// New creates a Registry seeded from the given store.
//
// The store is loaded once, here; the line order it returns fixes the
// name-to-id mapping for every previously persisted name. New returns an
// error only if the store cannot be read and also cannot be reset.
func New(ctx context.Context, store Store, opts ...Option) (*Registry, error) {
	const op = "registry.New"

	r := &Registry{
		store:    store,
		logger:   slog.Default(),
		capacity: MaxIDs,
		tracer:   otel.Tracer(instrumentationName),
		ids:      make(map[string]ID),
		handles:  make(map[ID]*Handle),
		owners:   make(map[ID]Owner),
		records:  make(map[ID]Registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = newMetrics(otel.Meter(instrumentationName), r.logger)
	}

	names, err := store.Load(ctx)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindPersistence, Err: fmt.Errorf("%w: %w", ErrPersistenceFailure, err)}
	}

	r.names = names
	for i, name := range names {
		r.ids[name] = ID(i + 1)
	}

	r.logger.Debug("enum registry loaded", "names", len(names), "capacity", r.capacity)
	return r, nil
}

// Register returns the handle for name, allocating and persisting a new id
// if the name has never been seen before.
//
// Register is idempotent per name: repeated calls with the same owner return
// the identical *Handle. If a live handle already exists under a different
// owner, Register fails with ErrOwnershipConflict and the error context
// carries the original registration record. A name known from the store but
// not currently live is revived under its persisted id without touching
// the store.
func (r *Registry) Register(ctx context.Context, name string, owner Owner) (*Handle, error) {
	return r.register(ctx, "Registry.Register", name, owner, false)
}

// Claim is the strict variant of Register: it fails with
// ErrDuplicateRegistration if any live handle for name already exists,
// regardless of owner. Use it when a second registration would indicate an
// initialization bug rather than a legitimate repeated lookup.
func (r *Registry) Claim(ctx context.Context, name string, owner Owner) (*Handle, error) {
	return r.register(ctx, "Registry.Claim", name, owner, true)
}

func (r *Registry) register(ctx context.Context, op, name string, owner Owner, strict bool) (*Handle, error) {
	ctx, span := r.tracer.Start(ctx, "enumid.Register",
		trace.WithAttributes(attribute.String("enumid.name", name)))
	defer span.End()

	if name == "" {
		return nil, &Error{Op: op, Kind: KindValidation, Err: ErrInvalidName}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, known := r.ids[name]; known {
		if _, isLive := r.live.Load(id); isLive {
			h := r.handles[id]
			if strict {
				r.metrics.conflict(ctx)
				return nil, r.collisionError(op, name, owner, id, KindDuplicate, ErrDuplicateRegistration)
			}
			if r.owners[id] != owner {
				r.metrics.conflict(ctx)
				return nil, r.collisionError(op, name, owner, id, KindOwnership, ErrOwnershipConflict)
			}
			r.metrics.registration(ctx, "existing")
			return h, nil
		}
		// Known from the store or a prior registration, but not live:
		// revive under the permanently assigned id. No rewrite needed.
		h := r.publishLocked(id, name, owner)
		r.metrics.registration(ctx, "revived")
		return h, nil
	}

	id := ID(len(r.names) + 1)
	if int(id) > r.capacity {
		return nil, &Error{
			Op:   op,
			Kind: KindCapacity,
			Err:  ErrCapacityExceeded,
			Context: map[string]any{
				"name":     name,
				"capacity": r.capacity,
			},
		}
	}

	r.names = append(r.names, name)
	r.ids[name] = id
	if err := r.store.Rewrite(ctx, r.names); err != nil {
		// The id was never durably recorded, so it must not be observable
		// in memory either. Roll back and let the caller see the failure.
		r.names = r.names[:len(r.names)-1]
		delete(r.ids, name)
		span.RecordError(err)
		return nil, &Error{
			Op:      op,
			Kind:    KindPersistence,
			Err:     fmt.Errorf("%w: %w", ErrPersistenceFailure, err),
			Context: map[string]any{"name": name},
		}
	}

	h := r.publishLocked(id, name, owner)
	r.logger.Debug("enum id allocated", "name", name, "id", int(id), "owner", string(owner))
	r.metrics.registration(ctx, "new")
	return h, nil
}

// publishLocked makes the handle for (id, name) live under owner.
// Callers must hold r.mu. Handle instances are cached for the process
// lifetime so that every resolution of a name yields the same pointer.
func (r *Registry) publishLocked(id ID, name string, owner Owner) *Handle {
	h, ok := r.handles[id]
	if !ok {
		h = &Handle{id: id, name: name}
		r.handles[id] = h
	}
	r.owners[id] = owner
	r.records[id] = newRegistration(owner)
	r.live.Store(id, h)
	return h
}

func (r *Registry) collisionError(op, name string, requested Owner, id ID, kind string, sentinel error) *Error {
	rec := r.records[id]
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  sentinel,
		Context: map[string]any{
			"name":               name,
			"id":                 int(id),
			"requested_owner":    string(requested),
			"registered_owner":   string(rec.Owner),
			"registration_event": rec.EventID,
			"registered_at":      rec.At,
			"registration_stack": string(rec.Stack),
		},
	}
}

// FindByName returns the handle for a known name without mutating the
// durable store. It reports false if the name was never registered in this
// process or recorded in the store.
//
// Unlike FindByID, FindByName resolves names that are persisted but not
// currently live, because the name-to-id binding is permanent.
func (r *Registry) FindByName(name string) (*Handle, bool) {
	r.mu.RLock()
	id, known := r.ids[name]
	h := r.handles[id]
	r.mu.RUnlock()

	if !known {
		r.metrics.lookup(context.Background(), "miss")
		return nil, false
	}
	if h == nil {
		h = r.internHandle(id, name)
	}
	r.metrics.lookup(context.Background(), "hit")
	return h, true
}

// FindByNameFor is the owner-checked variant of FindByName. If the name has
// a live handle, the recorded owner must match exactly, the NoOwner sentinel
// included; a mismatch fails loudly with ErrOwnershipConflict carrying the
// original registration record, because it means two independent components
// are fighting over the same logical name. Names that are known but not live
// have no recorded owner and pass the check.
//
// An unknown name returns (nil, nil).
func (r *Registry) FindByNameFor(name string, owner Owner) (*Handle, error) {
	const op = "Registry.FindByNameFor"

	r.mu.RLock()
	id, known := r.ids[name]
	h := r.handles[id]
	_, isLive := r.live.Load(id)
	registered := r.owners[id]
	r.mu.RUnlock()

	if !known {
		r.metrics.lookup(context.Background(), "miss")
		return nil, nil
	}
	if isLive && registered != owner {
		r.metrics.conflict(context.Background())
		r.mu.RLock()
		err := r.collisionError(op, name, owner, id, KindOwnership, ErrOwnershipConflict)
		r.mu.RUnlock()
		return nil, err
	}
	if h == nil {
		h = r.internHandle(id, name)
	}
	r.metrics.lookup(context.Background(), "hit")
	return h, nil
}

// internHandle creates and caches the unique handle instance for a persisted
// name on first resolution. Double-checked under the write lock so that
// concurrent lookups of the same name race to a single instance.
func (r *Registry) internHandle(id ID, name string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[id]; ok {
		return h
	}
	h := &Handle{id: id, name: name}
	r.handles[id] = h
	return h
}

// FindByID returns the live handle for id. It reports false for ids that
// were unregistered or never assigned. The lookup is lock-free.
func (r *Registry) FindByID(id ID) (*Handle, bool) {
	v, ok := r.live.Load(id)
	if !ok {
		r.metrics.lookup(context.Background(), "miss")
		return nil, false
	}
	r.metrics.lookup(context.Background(), "hit")
	return v.(*Handle), true
}

// Registration returns the creation record for a live handle, for
// diagnosing "who registered this". It reports false if the handle is not
// currently registered.
func (r *Registry) Registration(h *Handle) (Registration, bool) {
	if h == nil {
		return Registration{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cur, ok := r.live.Load(h.id); !ok || cur != h {
		return Registration{}, false
	}
	return r.records[h.id], true
}

// Unregister removes the handle from the live tables. The handle must be
// exactly the one currently registered for its id; anything else indicates
// a double-unregister or a handle from a different registry and fails with
// ErrStaleHandle.
//
// The durable enum store is not touched: the name keeps its line, and a
// future Register of the same name reuses the same id.
func (r *Registry) Unregister(h *Handle) error {
	const op = "Registry.Unregister"

	if h == nil {
		return &Error{Op: op, Kind: KindValidation, Err: ErrStaleHandle}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.live.Load(h.id)
	if !ok || cur != h {
		return &Error{
			Op:      op,
			Kind:    KindInternal,
			Err:     ErrStaleHandle,
			Context: map[string]any{"name": h.name, "id": int(h.id)},
		}
	}

	r.live.Delete(h.id)
	delete(r.owners, h.id)
	delete(r.records, h.id)
	r.logger.Debug("enum id unregistered", "name", h.name, "id", int(h.id))
	return nil
}

// Len returns the number of distinct names the registry has ever assigned
// ids to, including names that are persisted but not currently live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Dump renders the current live registry contents for operator inspection,
// one handle per line ordered by id.
func (r *Registry) Dump() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type entry struct {
		id    ID
		name  string
		owner Owner
	}
	var entries []entry
	r.live.Range(func(k, v any) bool {
		h := v.(*Handle)
		entries = append(entries, entry{id: k.(ID), name: h.name, owner: r.owners[h.id]})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	var b strings.Builder
	fmt.Fprintf(&b, "enum registry: %d live of %d known\n", len(entries), len(r.names))
	for _, e := range entries {
		fmt.Fprintf(&b, "  id=%d name=%q owner=%q\n", int(e.id), e.name, string(e.owner))
	}
	return b.String()
}

// ReinitializeDiskStorage forces a full rewrite of the durable enum store
// from the current in-memory state. Intended for test and reset tooling.
func (r *Registry) ReinitializeDiskStorage(ctx context.Context) error {
	const op = "Registry.ReinitializeDiskStorage"

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Rewrite(ctx, r.names); err != nil {
		return &Error{Op: op, Kind: KindPersistence, Err: fmt.Errorf("%w: %w", ErrPersistenceFailure, err)}
	}
	return nil
}

// Close releases the underlying store when it holds external resources.
// In-memory state needs no teardown; the store file is already durable.
func (r *Registry) Close() error {
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
