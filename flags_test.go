package deviceflags_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deviceflags "github.com/evo-company/deviceflags-go"
	"github.com/evo-company/deviceflags-go/memstore"
)

// countingStore counts GetProperties calls on the wrapped store.
type countingStore struct {
	deviceflags.Store
	getProperties int
	failNext      error
}

func (s *countingStore) GetProperties(ctx context.Context, namespace string) (deviceflags.Properties, error) {
	s.getProperties++
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return deviceflags.Properties{}, err
	}
	return s.Store.GetProperties(ctx, namespace)
}

func newFlags(store deviceflags.Store, opts ...deviceflags.Option) *deviceflags.Flags {
	opts = append([]deviceflags.Option{deviceflags.WithIdentity(&deviceflags.Identity{})}, opts...)
	return deviceflags.New(store, opts...)
}

func TestEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("unset flag is disabled", func(t *testing.T) {
		flags := newFlags(memstore.New())
		enabled, err := flags.Enabled(ctx)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("set then get", func(t *testing.T) {
		flags := newFlags(memstore.New(memstore.Strict()))
		for _, value := range []bool{true, false, true} {
			require.NoError(t, flags.SetEnabled(ctx, value))
			enabled, err := flags.Enabled(ctx)
			require.NoError(t, err)
			assert.Equal(t, value, enabled)
		}
	})

	t.Run("custom namespace and key", func(t *testing.T) {
		store := memstore.New()
		flags := newFlags(store,
			deviceflags.WithNamespace("rollout"),
			deviceflags.WithFlagName("feature_on"),
		)
		require.NoError(t, flags.SetEnabled(ctx, true))
		assert.Equal(t, map[string]string{"feature_on": "true"}, store.Dump("rollout"))
		assert.Empty(t, store.Dump(deviceflags.NamespacePrivacy))
	})
}

func TestSetEnabledRejected(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	flags := newFlags(store)
	require.NoError(t, flags.SetEnabled(ctx, false))

	store.RejectWrites(true)
	err := flags.SetEnabled(ctx, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, deviceflags.ErrorCantSetFlag))

	enabled, err := flags.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled, "value must not change")
}

func TestSetEnabledWithoutPermission(t *testing.T) {
	ctx := context.Background()
	identity := &deviceflags.Identity{}
	store := memstore.New(memstore.Strict())
	flags := deviceflags.New(store, deviceflags.WithIdentity(identity))

	t.Run("inside a write scope", func(t *testing.T) {
		err := identity.Call(ctx, func(ctx context.Context) error {
			return flags.SetEnabledWithoutPermission(ctx, true)
		}, deviceflags.WriteDeviceConfig)
		require.NoError(t, err)

		enabled, err := flags.Enabled(ctx)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("without a scope", func(t *testing.T) {
		err := flags.SetEnabledWithoutPermission(ctx, false)
		assert.ErrorIs(t, err, deviceflags.ErrorPermissionDenied)
	})

	t.Run("SetEnabled inside another scope", func(t *testing.T) {
		err := identity.Call(ctx, func(ctx context.Context) error {
			return flags.SetEnabled(ctx, false)
		}, deviceflags.WriteDeviceConfig)
		assert.ErrorIs(t, err, deviceflags.ErrorScopeActive)
		assert.False(t, identity.Active())
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("memoized", func(t *testing.T) {
		store := &countingStore{Store: memstore.New()}
		flags := newFlags(store)
		require.NoError(t, flags.SetEnabled(ctx, true))

		first, err := flags.Snapshot(ctx)
		require.NoError(t, err)
		second, err := flags.Snapshot(ctx)
		require.NoError(t, err)

		assert.True(t, first.Equal(second))
		assert.Equal(t, 1, store.getProperties)
	})

	t.Run("later mutations do not change it", func(t *testing.T) {
		flags := newFlags(memstore.New())
		snapshot, err := flags.Snapshot(ctx)
		require.NoError(t, err)

		require.NoError(t, flags.SetEnabled(ctx, true))
		again, err := flags.Snapshot(ctx)
		require.NoError(t, err)

		assert.True(t, snapshot.Equal(again))
		assert.False(t, flags.IsEnabledIn(again))
	})

	t.Run("failures are not cached", func(t *testing.T) {
		store := &countingStore{Store: memstore.New(), failNext: errors.New("device offline")}
		flags := newFlags(store)

		_, err := flags.Snapshot(ctx)
		assert.ErrorIs(t, err, deviceflags.ErrorCantSnapshot)

		_, err = flags.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, store.getProperties)
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("restores pre-mutation state", func(t *testing.T) {
		store := memstore.New(memstore.WithProperties(deviceflags.NewProperties(deviceflags.NamespacePrivacy, map[string]string{
			"other_flag": "42",
		})))
		flags := newFlags(store)

		snapshot, err := flags.Snapshot(ctx)
		require.NoError(t, err)
		require.False(t, flags.IsEnabledIn(snapshot))

		require.NoError(t, flags.SetEnabled(ctx, true))
		enabled, err := flags.Enabled(ctx)
		require.NoError(t, err)
		require.True(t, enabled)

		require.NoError(t, flags.Reset(ctx, snapshot))
		enabled, err = flags.Enabled(ctx)
		require.NoError(t, err)
		assert.False(t, enabled)
		assert.Equal(t, snapshot.Map(), store.Dump(deviceflags.NamespacePrivacy))
	})

	t.Run("every recorded key round trips", func(t *testing.T) {
		store := memstore.New()
		flags := newFlags(store)
		snapshot := deviceflags.NewProperties(deviceflags.NamespacePrivacy, map[string]string{
			deviceflags.PropertySafetyCenterEnabled: "true",
			"refresh_timeout":                       "100",
		})

		require.NoError(t, flags.Restore(ctx, snapshot))

		current, err := store.GetProperties(ctx, deviceflags.NamespacePrivacy)
		require.NoError(t, err)
		for _, key := range snapshot.Keys() {
			want, _ := snapshot.Get(key)
			got, ok := current.Get(key)
			assert.True(t, ok, key)
			assert.Equal(t, want, got, key)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		store := memstore.New()
		store.RejectWrites(true)
		flags := newFlags(store)

		err := flags.Reset(ctx, deviceflags.NewProperties(deviceflags.NamespacePrivacy, nil))
		assert.ErrorIs(t, err, deviceflags.ErrorCantSetFlag)
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	flags := newFlags(store)

	restore, err := flags.Toggle(ctx, true)
	require.NoError(t, err)

	enabled, err := flags.Enabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled)

	require.NoError(t, restore(ctx))
	enabled, err = flags.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Empty(t, store.Dump(deviceflags.NamespacePrivacy))
}

func TestIsSupported(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		resources deviceflags.Resources
		expected  bool
	}{
		{"supported", deviceflags.MapResources{deviceflags.ResourceEnableSafetyCenter: true}, true},
		{"unsupported", deviceflags.MapResources{deviceflags.ResourceEnableSafetyCenter: false}, false},
		{"missing resource", deviceflags.MapResources{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flags := newFlags(memstore.New(), deviceflags.WithResources(tc.resources))
			assert.Equal(t, tc.expected, flags.IsSupported(ctx))
		})
	}

	t.Run("custom resource name", func(t *testing.T) {
		flags := newFlags(memstore.New(),
			deviceflags.WithResourceName("config_other"),
			deviceflags.WithResources(deviceflags.MapResources{"config_other": true}),
		)
		assert.True(t, flags.IsSupported(ctx))
	})
}

func TestEnabledIn(t *testing.T) {
	props := deviceflags.NewProperties("privacy", map[string]string{"on": "True", "off": "false", "junk": "yes"})

	assert.True(t, deviceflags.EnabledIn(props, "on"))
	assert.False(t, deviceflags.EnabledIn(props, "off"))
	assert.False(t, deviceflags.EnabledIn(props, "junk"))
	assert.False(t, deviceflags.EnabledIn(props, "missing"))
	assert.False(t, deviceflags.EnabledIn(deviceflags.Properties{}, "missing"))
}
