// Package deviceflags reads, toggles, snapshots and restores a boolean device
// config flag from end-to-end tests.
package deviceflags

import (
	"sync"
)

const (
	// NamespacePrivacy is the device config namespace that holds the Safety Center flags.
	NamespacePrivacy = "privacy"
	// PropertySafetyCenterEnabled determines whether Safety Center is enabled.
	PropertySafetyCenterEnabled = "safety_center_is_enabled"
	// ResourceEnableSafetyCenter is the platform resource telling whether the build ships Safety Center.
	ResourceEnableSafetyCenter = "config_enableSafetyCenter"
)

// Logger is satisfied by *log.Logger and *logrus.Logger.
type Logger interface {
	Fatalf(format string, args ...any)
	Printf(format string, args ...any)
}

// defaultLogger is a no-op logger used when no logger is provided
type defaultLogger struct{}

func (l *defaultLogger) Fatalf(format string, args ...any) {}
func (l *defaultLogger) Printf(format string, args ...any) {}

// Flags reads and modifies a single boolean device config flag.
//
// The namespace snapshot is taken at most once per Flags value and kept for its
// whole lifetime, so Snapshot must be called before the first mutation.
type Flags struct {
	store        Store
	identity     *Identity
	resources    Resources
	logger       Logger
	namespace    string
	flagName     string
	resourceName string

	mu       sync.Mutex
	snapshot *Properties
}

// Config holds configuration options for Flags
type Config struct {
	namespace    string
	flagName     string
	resourceName string
	identity     *Identity
	resources    Resources
	logger       Logger
}

// Option is a function that configures a Config
type Option func(*Config)

// WithNamespace sets the device config namespace the flag lives in
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.namespace = namespace
	}
}

// WithFlagName sets the key of the boolean flag inside the namespace
func WithFlagName(name string) Option {
	return func(c *Config) {
		c.flagName = name
	}
}

// WithResourceName sets the boolean platform resource consulted by IsSupported
func WithResourceName(name string) Option {
	return func(c *Config) {
		c.resourceName = name
	}
}

// WithIdentity sets the identity used to elevate permissions around store calls.
// Flags values that share an identity share its single elevation slot.
func WithIdentity(identity *Identity) Option {
	return func(c *Config) {
		c.identity = identity
	}
}

// WithResources sets the platform resource lookup
func WithResources(resources Resources) Option {
	return func(c *Config) {
		c.resources = resources
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// New returns Flags for the Safety Center flag on store unless options say otherwise.
func New(store Store, opts ...Option) *Flags {
	config := &Config{
		namespace:    NamespacePrivacy,
		flagName:     PropertySafetyCenterEnabled,
		resourceName: ResourceEnableSafetyCenter,
		identity:     ShellIdentity,
		resources:    MapResources{},
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.logger == nil {
		config.logger = &defaultLogger{}
	}
	if config.identity == nil {
		config.identity = ShellIdentity
	}
	if config.resources == nil {
		config.resources = MapResources{}
	}

	return &Flags{
		store:        store,
		identity:     config.identity,
		resources:    config.resources,
		logger:       config.logger,
		namespace:    config.namespace,
		flagName:     config.flagName,
		resourceName: config.resourceName,
	}
}

// Namespace returns the device config namespace of the flag.
func (flags *Flags) Namespace() string {
	return flags.namespace
}

// FlagName returns the key of the flag inside its namespace.
func (flags *Flags) FlagName() string {
	return flags.flagName
}

// Identity returns the identity the flags elevate permissions with.
func (flags *Flags) Identity() *Identity {
	return flags.identity
}
