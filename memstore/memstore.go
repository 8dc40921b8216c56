// Package memstore is an in-memory deviceflags.Store for tests.
package memstore

import (
	"context"
	"maps"
	"sync"

	deviceflags "github.com/evo-company/deviceflags-go"
)

// Store keeps namespaces in memory.
type Store struct {
	mu           sync.RWMutex
	namespaces   map[string]map[string]string
	rejectWrites bool
	strict       bool
}

type Option func(*Store)

// Strict makes the store require permission scopes from the caller's ctx.
func Strict() Option {
	return func(s *Store) {
		s.strict = true
	}
}

// WithProperties seeds the store with props.
func WithProperties(props deviceflags.Properties) Option {
	return func(s *Store) {
		s.namespaces[props.Namespace] = props.Map()
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		namespaces: make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RejectWrites makes every following write report that it did not apply.
func (s *Store) RejectWrites(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectWrites = reject
}

func (s *Store) require(ctx context.Context, perm deviceflags.Permission) error {
	if !s.strict {
		return nil
	}
	return deviceflags.RequirePermission(ctx, perm)
}

func (s *Store) GetBoolean(ctx context.Context, namespace, key string, def bool) (bool, error) {
	if err := s.require(ctx, deviceflags.ReadDeviceConfig); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.namespaces[namespace][key]
	if !ok {
		return def, nil
	}
	return deviceflags.ParseBoolean(value), nil
}

func (s *Store) GetProperties(ctx context.Context, namespace string) (deviceflags.Properties, error) {
	if err := s.require(ctx, deviceflags.ReadDeviceConfig); err != nil {
		return deviceflags.Properties{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return deviceflags.NewProperties(namespace, s.namespaces[namespace]), nil
}

// SetProperty stores value under namespace/key. There is no separate default
// layer, so makeDefault is ignored.
func (s *Store) SetProperty(ctx context.Context, namespace, key, value string, makeDefault bool) (bool, error) {
	if err := s.require(ctx, deviceflags.WriteDeviceConfig); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectWrites {
		return false, nil
	}
	if s.namespaces[namespace] == nil {
		s.namespaces[namespace] = make(map[string]string)
	}
	s.namespaces[namespace][key] = value
	return true, nil
}

func (s *Store) SetProperties(ctx context.Context, props deviceflags.Properties) (bool, error) {
	if err := s.require(ctx, deviceflags.WriteDeviceConfig); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectWrites {
		return false, nil
	}
	s.namespaces[props.Namespace] = props.Map()
	return true, nil
}

// Dump returns a copy of namespace without any permission check.
func (s *Store) Dump(namespace string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.namespaces[namespace])
}
