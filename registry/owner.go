package registry

import (
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Owner identifies the component that registered a name. It is opaque to the
// registry and only compared for equality when diagnosing cross-owner name
// collisions. Callers state their own identity explicitly at registration
// time; the registry never infers it.
type Owner string

// NoOwner is the sentinel for anonymous registrations.
const NoOwner Owner = ""

// Registration is the creation record kept for every live handle. It answers
// "who registered this, and where" when two components fight over a name.
type Registration struct {
	// Owner is the identity supplied at registration time.
	Owner Owner

	// EventID uniquely identifies this registration event.
	EventID string

	// At is the time the registration happened.
	At time.Time

	// Stack is the goroutine stack captured at registration time.
	Stack []byte
}

func newRegistration(owner Owner) Registration {
	return Registration{
		Owner:   owner,
		EventID: uuid.New().String(),
		At:      time.Now(),
		Stack:   debug.Stack(),
	}
}
