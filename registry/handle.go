package registry

import "fmt"

// MaxIDs is the largest id the registry will ever assign. The durable enum
// store encodes ids as line numbers, and consumers pack them into 16-bit
// fields, so the ceiling matches the positive int16 range.
const MaxIDs = 32767

// ID is the dense positive integer assigned to a registered name.
// Valid ids are in [1, MaxIDs]; the zero value means "unassigned".
type ID int32

// Valid reports whether the id is in the assignable range.
func (id ID) Valid() bool {
	return id >= 1 && id <= MaxIDs
}

// Handle is the in-process object representing a registered name's id.
//
// Handles are unique per name for the lifetime of the process: every
// registry operation that resolves the same name returns the same *Handle,
// so handles may be compared by pointer. Identity is defined solely by the
// underlying id; the name is carried for diagnostics.
//
// A Handle is immutable once created. It remains usable as a map key after
// Unregister; only the registry's live bookkeeping for it is removed.
type Handle struct {
	id   ID
	name string
}

// UniqueID returns the stable id assigned to the handle's name.
func (h *Handle) UniqueID() ID {
	return h.id
}

// Name returns the name the handle was registered under.
func (h *Handle) Name() string {
	return h.name
}

// String returns a short diagnostic form, e.g. "trigram.index#12".
func (h *Handle) String() string {
	return fmt.Sprintf("%s#%d", h.name, h.id)
}
