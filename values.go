package deviceflags

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Properties is an immutable copy of the key/value pairs of one namespace.
type Properties struct {
	Namespace string
	values    map[string]string
}

// NewProperties copies values into Properties for namespace.
func NewProperties(namespace string, values map[string]string) Properties {
	return Properties{
		Namespace: namespace,
		values:    maps.Clone(values),
	}
}

// Get returns the raw value stored under key.
func (p Properties) Get(key string) (string, bool) {
	value, ok := p.values[key]
	return value, ok
}

// GetString returns the value stored under key, or def if absent.
func (p Properties) GetString(key, def string) string {
	if value, ok := p.values[key]; ok {
		return value
	}
	return def
}

// GetBoolean returns def if key is absent. Present values are true only when
// they equal "true" ignoring case.
func (p Properties) GetBoolean(key string, def bool) bool {
	value, ok := p.values[key]
	if !ok {
		return def
	}
	return ParseBoolean(value)
}

// GetInt returns the value as an int. Returns an error if the value doesn't exist
// or cannot be parsed.
func (p Properties) GetInt(key string) (int, error) {
	value, ok := p.values[key]
	if !ok {
		return 0, fmt.Errorf("property %s not found in %s", key, p.Namespace)
	}

	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("property %s cannot be parsed as int: %q", key, value)
	}
	return intVal, nil
}

// GetIntOr returns the value as an int, or def if absent or unparsable.
func (p Properties) GetIntOr(key string, def int) int {
	intVal, err := p.GetInt(key)
	if err != nil {
		return def
	}
	return intVal
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	var keys []string
	for key := range p.values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Map returns a copy of the pairs.
func (p Properties) Map() map[string]string {
	if p.values == nil {
		return map[string]string{}
	}
	return maps.Clone(p.values)
}

func (p Properties) Len() int {
	return len(p.values)
}

// Equal reports whether both hold the same namespace and pairs.
func (p Properties) Equal(other Properties) bool {
	return p.Namespace == other.Namespace && maps.Equal(p.values, other.values)
}

func (p Properties) String() string {
	var b strings.Builder
	b.WriteString(p.Namespace)
	b.WriteString("{")
	for i, key := range p.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", key, p.values[key])
	}
	b.WriteString("}")
	return b.String()
}

// ParseBoolean is true only for "true" ignoring case.
func ParseBoolean(value string) bool {
	return strings.EqualFold(value, "true")
}
