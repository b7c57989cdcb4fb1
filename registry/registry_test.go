package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// memStore is an in-memory Store for tests. It survives across New calls to
// simulate process restarts, and can be told to fail rewrites.
type memStore struct {
	mu       sync.Mutex
	names    []string
	rewrites int
	failWith error
}

func (s *memStore) Load(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out, nil
}

func (s *memStore) Rewrite(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.rewrites++
	s.names = make([]string, len(names))
	copy(s.names, names)
	return nil
}

func (s *memStore) stored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *memStore) {
	t.Helper()
	s := &memStore{}
	r, err := New(context.Background(), s, opts...)
	require.NoError(t, err)
	return r, s
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	alpha, err := r.Register(ctx, "alpha", NoOwner)
	require.NoError(t, err)
	beta, err := r.Register(ctx, "beta", NoOwner)
	require.NoError(t, err)
	gamma, err := r.Register(ctx, "gamma", NoOwner)
	require.NoError(t, err)

	assert.Equal(t, ID(1), alpha.UniqueID())
	assert.Equal(t, ID(2), beta.UniqueID())
	assert.Equal(t, ID(3), gamma.UniqueID())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, s.stored())
	assert.Equal(t, 3, r.Len())
}

func TestRegisterIsIdempotent(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	first, err := r.Register(ctx, "alpha", Owner("search"))
	require.NoError(t, err)
	second, err := r.Register(ctx, "alpha", Owner("search"))
	require.NoError(t, err)

	// Same instance, not just same id.
	assert.Same(t, first, second)
	assert.Equal(t, 1, s.rewrites, "repeated registration must not rewrite the store")
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(context.Background(), "", NoOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidName)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, KindValidation, regErr.Kind)
}

func TestRegisterOwnershipConflict(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, "shared", Owner("plugin-a"))
	require.NoError(t, err)

	_, err = r.Register(ctx, "shared", Owner("plugin-b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOwnershipConflict)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, KindOwnership, regErr.Kind)
	assert.Equal(t, "plugin-a", regErr.Context["registered_owner"])
	assert.Equal(t, "plugin-b", regErr.Context["requested_owner"])
	assert.NotEmpty(t, regErr.Context["registration_stack"], "conflict must carry the original registration stack")
}

func TestClaimRejectsLiveHandle(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Claim(ctx, "alpha", Owner("search"))
	require.NoError(t, err)
	assert.Equal(t, ID(1), h.UniqueID())

	t.Run("same owner", func(t *testing.T) {
		_, err := r.Claim(ctx, "alpha", Owner("search"))
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	})

	t.Run("different owner", func(t *testing.T) {
		_, err := r.Claim(ctx, "alpha", Owner("other"))
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	})

	t.Run("after unregister", func(t *testing.T) {
		require.NoError(t, r.Unregister(h))
		again, err := r.Claim(ctx, "alpha", Owner("other"))
		require.NoError(t, err)
		assert.Equal(t, ID(1), again.UniqueID())
	})
}

func TestCapacityBoundary(t *testing.T) {
	r, s := newTestRegistry(t, WithCapacity(3))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		h, err := r.Register(ctx, fmt.Sprintf("name-%d", i), NoOwner)
		require.NoError(t, err)
		assert.Equal(t, ID(i), h.UniqueID())
	}

	_, err := r.Register(ctx, "one-too-many", NoOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// No partial state from the failed allocation.
	assert.Equal(t, 3, r.Len())
	assert.Len(t, s.stored(), 3)
	_, ok := r.FindByName("one-too-many")
	assert.False(t, ok)
}

func TestMaxIDsMatchesIDRange(t *testing.T) {
	assert.Equal(t, 32767, MaxIDs)
	assert.True(t, ID(MaxIDs).Valid())
	assert.False(t, ID(MaxIDs+1).Valid())
	assert.False(t, ID(0).Valid())
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	s.failWith = errors.New("disk full")
	_, err := r.Register(ctx, "alpha", NoOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, 0, r.Len())

	_, ok := r.FindByName("alpha")
	assert.False(t, ok, "unpersisted name must not be observable")

	// The id slot freed by the rollback is reused once the store recovers.
	s.failWith = nil
	h, err := r.Register(ctx, "beta", NoOwner)
	require.NoError(t, err)
	assert.Equal(t, ID(1), h.UniqueID())
}

func TestRestartRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := &memStore{}

	r1, err := New(ctx, s)
	require.NoError(t, err)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := r1.Register(ctx, name, NoOwner)
		require.NoError(t, err)
	}

	// Simulate a restart: a fresh registry over the same store.
	r2, err := New(ctx, s)
	require.NoError(t, err)

	beta, ok := r2.FindByName("beta")
	require.True(t, ok)
	assert.Equal(t, ID(2), beta.UniqueID())

	alpha, ok := r2.FindByName("alpha")
	require.True(t, ok)
	assert.Equal(t, ID(1), alpha.UniqueID())

	// Ids are never reused: a new name continues the sequence.
	delta, err := r2.Register(ctx, "delta", NoOwner)
	require.NoError(t, err)
	assert.Equal(t, ID(4), delta.UniqueID())

	// Re-registering a persisted name keeps its original id without a rewrite.
	rewrites := s.rewrites
	gamma, err := r2.Register(ctx, "gamma", Owner("search"))
	require.NoError(t, err)
	assert.Equal(t, ID(3), gamma.UniqueID())
	assert.Equal(t, rewrites, s.rewrites)
}

func TestFindByName(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Register(ctx, "alpha", NoOwner)
	require.NoError(t, err)

	t.Run("known name", func(t *testing.T) {
		found, ok := r.FindByName("alpha")
		require.True(t, ok)
		assert.Same(t, h, found)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, ok := r.FindByName("missing")
		assert.False(t, ok)
	})

	t.Run("persisted but not live", func(t *testing.T) {
		require.NoError(t, r.Unregister(h))
		found, ok := r.FindByName("alpha")
		require.True(t, ok, "name-to-id binding is permanent")
		assert.Equal(t, ID(1), found.UniqueID())
	})
}

func TestFindByNameFor(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Register(ctx, "shared", Owner("plugin-a"))
	require.NoError(t, err)

	t.Run("matching owner", func(t *testing.T) {
		found, err := r.FindByNameFor("shared", Owner("plugin-a"))
		require.NoError(t, err)
		assert.Same(t, h, found)
	})

	t.Run("mismatched owner", func(t *testing.T) {
		_, err := r.FindByNameFor("shared", Owner("plugin-b"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOwnershipConflict)
	})

	t.Run("no-owner sentinel mismatches", func(t *testing.T) {
		_, err := r.FindByNameFor("shared", NoOwner)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOwnershipConflict)
	})

	t.Run("unknown name is absent", func(t *testing.T) {
		found, err := r.FindByNameFor("missing", Owner("plugin-a"))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("not live passes any owner", func(t *testing.T) {
		require.NoError(t, r.Unregister(h))
		found, err := r.FindByNameFor("shared", Owner("plugin-b"))
		require.NoError(t, err)
		assert.Equal(t, ID(1), found.UniqueID())
	})
}

func TestFindByID(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Register(ctx, "alpha", NoOwner)
	require.NoError(t, err)

	found, ok := r.FindByID(h.UniqueID())
	require.True(t, ok)
	assert.Same(t, h, found)

	_, ok = r.FindByID(999)
	assert.False(t, ok, "never-assigned id")

	require.NoError(t, r.Unregister(h))
	_, ok = r.FindByID(h.UniqueID())
	assert.False(t, ok, "unregistered id")
}

func TestUnregister(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Register(ctx, "alpha", Owner("search"))
	require.NoError(t, err)
	rewrites := s.rewrites

	require.NoError(t, r.Unregister(h))
	assert.Equal(t, rewrites, s.rewrites, "unregister must not touch the store")
	assert.Equal(t, []string{"alpha"}, s.stored(), "the persisted line stays")

	t.Run("double unregister", func(t *testing.T) {
		err := r.Unregister(h)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStaleHandle)
	})

	t.Run("nil handle", func(t *testing.T) {
		assert.Error(t, r.Unregister(nil))
	})

	t.Run("re-register keeps the id", func(t *testing.T) {
		again, err := r.Register(ctx, "alpha", Owner("other"))
		require.NoError(t, err)
		assert.Equal(t, h.UniqueID(), again.UniqueID())

		// A different name still gets a fresh id.
		beta, err := r.Register(ctx, "beta", NoOwner)
		require.NoError(t, err)
		assert.Equal(t, ID(2), beta.UniqueID())
	})
}

func TestRegistrationRecord(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	h, err := r.Register(ctx, "alpha", Owner("search"))
	require.NoError(t, err)

	rec, ok := r.Registration(h)
	require.True(t, ok)
	assert.Equal(t, Owner("search"), rec.Owner)
	assert.NotEmpty(t, rec.EventID)
	assert.False(t, rec.At.IsZero())
	assert.Contains(t, string(rec.Stack), "goroutine")

	require.NoError(t, r.Unregister(h))
	_, ok = r.Registration(h)
	assert.False(t, ok)
}

func TestDump(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, "alpha", Owner("search"))
	require.NoError(t, err)
	beta, err := r.Register(ctx, "beta", Owner("cache"))
	require.NoError(t, err)
	require.NoError(t, r.Unregister(beta))

	dump := r.Dump()
	assert.Contains(t, dump, "1 live of 2 known")
	assert.Contains(t, dump, `id=1 name="alpha" owner="search"`)
	assert.NotContains(t, dump, `name="beta"`)
}

func TestReinitializeDiskStorage(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, "alpha", NoOwner)
	require.NoError(t, err)
	_, err = r.Register(ctx, "beta", NoOwner)
	require.NoError(t, err)

	rewrites := s.rewrites
	require.NoError(t, r.ReinitializeDiskStorage(ctx))
	assert.Equal(t, rewrites+1, s.rewrites)
	assert.Equal(t, []string{"alpha", "beta"}, s.stored())

	s.failWith = errors.New("disk full")
	err = r.ReinitializeDiskStorage(ctx)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestConcurrentRegister(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	const goroutines = 32
	const perGoroutine = 8

	var wg sync.WaitGroup
	handles := make([][]*Handle, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				// Half the names are shared across goroutines to exercise
				// the idempotent path under contention.
				name := fmt.Sprintf("shared-%d", i)
				if g%2 == 0 {
					name = fmt.Sprintf("own-%d-%d", g, i)
				}
				h, err := r.Register(ctx, name, NoOwner)
				if err != nil {
					t.Error(err)
					return
				}
				handles[g] = append(handles[g], h)
			}
		}(g)
	}
	wg.Wait()

	// Every name maps to exactly one id, every id to exactly one name.
	seen := make(map[ID]string)
	for _, hs := range handles {
		for _, h := range hs {
			if name, ok := seen[h.UniqueID()]; ok {
				assert.Equal(t, name, h.Name(), "id assigned to two names")
			}
			seen[h.UniqueID()] = h.Name()
		}
	}
	assert.Equal(t, r.Len(), len(seen))
	assert.Equal(t, r.Len(), len(s.stored()))

	// Concurrent registrations of a shared name converged on one instance.
	h1, ok := r.FindByName("shared-0")
	require.True(t, ok)
	h2, err := r.Register(ctx, "shared-0", NoOwner)
	require.NoError(t, err)
	assert.Same(t, h1, h2)
}

func TestRegisterTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r, _ := newTestRegistry(t, WithTracerProvider(tp))
	_, err := r.Register(context.Background(), "alpha", NoOwner)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	var names []string
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.True(t, strings.Contains(strings.Join(names, ","), "enumid.Register"))
}

func TestHandleString(t *testing.T) {
	r, _ := newTestRegistry(t)
	h, err := r.Register(context.Background(), "trigram.index", NoOwner)
	require.NoError(t, err)
	assert.Equal(t, "trigram.index#1", h.String())
}
