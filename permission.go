package deviceflags

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Permission is a device permission a scope can hold.
type Permission string

const (
	ReadDeviceConfig  Permission = "android.permission.READ_DEVICE_CONFIG"
	WriteDeviceConfig Permission = "android.permission.WRITE_DEVICE_CONFIG"
)

var ErrorScopeActive = errors.New("permission scope already active")

var ErrorPermissionDenied = errors.New("permission denied")

// PermissionError is returned by RequirePermission.
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s not held", ErrorPermissionDenied, e.Permission)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrorPermissionDenied
}

// Identity hands out permission scopes. It has a single slot: while one scope
// is active every Elevate fails with ErrorScopeActive, nested calls included.
type Identity struct {
	mu     sync.Mutex
	active *Scope
}

// ShellIdentity is the process wide identity used when none is configured.
var ShellIdentity = &Identity{}

// Scope is a held elevation. It stops holding anything once released.
type Scope struct {
	identity    *Identity
	permissions map[Permission]struct{}
}

// Elevate acquires the identity's slot with perms.
func (id *Identity) Elevate(perms ...Permission) (*Scope, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.active != nil {
		return nil, ErrorScopeActive
	}

	scope := &Scope{
		identity:    id,
		permissions: make(map[Permission]struct{}, len(perms)),
	}
	for _, perm := range perms {
		scope.permissions[perm] = struct{}{}
	}
	id.active = scope
	return scope, nil
}

// Active reports whether a scope currently holds the slot.
func (id *Identity) Active() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.active != nil
}

// Call runs fn with a scope holding perms carried by its ctx, releasing the
// scope when fn returns.
func (id *Identity) Call(ctx context.Context, fn func(ctx context.Context) error, perms ...Permission) error {
	scope, err := id.Elevate(perms...)
	if err != nil {
		return err
	}
	defer scope.Release()
	return fn(WithScope(ctx, scope))
}

func callWithPermission[T any](ctx context.Context, id *Identity, fn func(ctx context.Context) (T, error), perms ...Permission) (T, error) {
	var result T
	err := id.Call(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}, perms...)
	return result, err
}

// Release frees the identity's slot. Releasing twice is a no-op.
func (s *Scope) Release() {
	s.identity.mu.Lock()
	defer s.identity.mu.Unlock()
	if s.identity.active == s {
		s.identity.active = nil
	}
}

// Holds reports whether the scope is still active and holds perm.
func (s *Scope) Holds(perm Permission) bool {
	s.identity.mu.Lock()
	defer s.identity.mu.Unlock()
	if s.identity.active != s {
		return false
	}
	_, ok := s.permissions[perm]
	return ok
}
