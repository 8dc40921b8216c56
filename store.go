package deviceflags

import (
	"context"
	"errors"
	"fmt"
)

// Store is a namespaced key/value device config store.
//
// Write methods report whether the write applied; a false result with a nil
// error means the store refused it. SetProperties replaces the whole
// namespace of props: keys it does not carry are removed.
type Store interface {
	GetBoolean(ctx context.Context, namespace, key string, def bool) (bool, error)
	GetProperties(ctx context.Context, namespace string) (Properties, error)
	SetProperty(ctx context.Context, namespace, key, value string, makeDefault bool) (bool, error)
	SetProperties(ctx context.Context, props Properties) (bool, error)
}

var ErrorResourceNotFound = errors.New("resource not found")

// Resources looks up boolean platform resources by name.
type Resources interface {
	Bool(ctx context.Context, name string) (bool, error)
}

// MapResources is a fixed set of boolean resources.
type MapResources map[string]bool

func (m MapResources) Bool(_ context.Context, name string) (bool, error) {
	value, ok := m[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrorResourceNotFound, name)
	}
	return value, nil
}
