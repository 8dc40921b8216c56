package deviceflags

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var ErrorCantSetFlag = errors.New("can not set flag")

var ErrorCantSnapshot = errors.New("can not snapshot flags")

// IsSupported reports whether the device build ships the feature at all.
// A failed resource lookup is logged and reported as unsupported.
func (flags *Flags) IsSupported(ctx context.Context) bool {
	supported, err := flags.resources.Bool(ctx, flags.resourceName)
	if err != nil {
		flags.logger.Printf("Could not read resource %s: %v", flags.resourceName, err)
		return false
	}
	return supported
}

// Enabled reads the flag with READ_DEVICE_CONFIG held. An unset flag is false.
func (flags *Flags) Enabled(ctx context.Context) (bool, error) {
	return callWithPermission(ctx, flags.identity, func(ctx context.Context) (bool, error) {
		return flags.store.GetBoolean(ctx, flags.namespace, flags.flagName, false)
	}, ReadDeviceConfig)
}

// SetEnabled writes the flag with WRITE_DEVICE_CONFIG held.
func (flags *Flags) SetEnabled(ctx context.Context, value bool) error {
	return flags.identity.Call(ctx, func(ctx context.Context) error {
		return flags.SetEnabledWithoutPermission(ctx, value)
	}, WriteDeviceConfig)
}

// SetEnabledWithoutPermission writes the flag without elevating permissions;
// ctx must already carry a scope holding WriteDeviceConfig.
//
// Elevation goes through a single non-reentrant slot, so this is the variant to
// use from inside another Identity.Call. Calling SetEnabled there fails with
// ErrorScopeActive.
func (flags *Flags) SetEnabledWithoutPermission(ctx context.Context, value bool) error {
	applied, err := flags.store.SetProperty(
		ctx, flags.namespace, flags.flagName, strconv.FormatBool(value), false,
	)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: could not set %s/%s to %t", ErrorCantSetFlag, flags.namespace, flags.flagName, value)
	}
	flags.logger.Printf("Flag %s/%s set to %t", flags.namespace, flags.flagName, value)
	return nil
}

// Snapshot returns all properties of the flag namespace as they were the first
// time it was called. Failed captures are not cached.
func (flags *Flags) Snapshot(ctx context.Context) (Properties, error) {
	flags.mu.Lock()
	defer flags.mu.Unlock()

	if flags.snapshot != nil {
		return *flags.snapshot, nil
	}

	props, err := callWithPermission(ctx, flags.identity, func(ctx context.Context) (Properties, error) {
		return flags.store.GetProperties(ctx, flags.namespace)
	}, ReadDeviceConfig)
	if err != nil {
		return Properties{}, errors.Join(ErrorCantSnapshot, err)
	}

	flags.snapshot = &props
	flags.logger.Printf("Snapshot of %s taken with %d properties", flags.namespace, props.Len())
	return props, nil
}

// Reset writes snapshot back to the store with WRITE_DEVICE_CONFIG held. The
// namespace is replaced: keys missing from snapshot are removed.
func (flags *Flags) Reset(ctx context.Context, snapshot Properties) error {
	return flags.identity.Call(ctx, func(ctx context.Context) error {
		applied, err := flags.store.SetProperties(ctx, snapshot)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: could not reset namespace %s", ErrorCantSetFlag, snapshot.Namespace)
		}
		flags.logger.Printf("Namespace %s reset to snapshot", snapshot.Namespace)
		return nil
	}, WriteDeviceConfig)
}

// Restore is an alias of Reset.
func (flags *Flags) Restore(ctx context.Context, snapshot Properties) error {
	return flags.Reset(ctx, snapshot)
}

// IsEnabledIn returns the flag value recorded in snapshot, false if absent.
func (flags *Flags) IsEnabledIn(snapshot Properties) bool {
	return EnabledIn(snapshot, flags.flagName)
}

// EnabledIn returns the boolean stored under key in props, false if absent.
func EnabledIn(props Properties, key string) bool {
	return props.GetBoolean(key, false)
}

// Toggle takes the snapshot if needed, sets the flag to value and returns a
// function resetting the namespace to the snapshot.
//
//	restore, err := flags.Toggle(ctx, true)
//	require.NoError(t, err)
//	t.Cleanup(func() { _ = restore(context.Background()) })
func (flags *Flags) Toggle(ctx context.Context, value bool) (func(context.Context) error, error) {
	snapshot, err := flags.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := flags.SetEnabled(ctx, value); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return flags.Reset(ctx, snapshot)
	}, nil
}
