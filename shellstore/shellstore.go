// Package shellstore implements deviceflags.Store on top of the device's
// device_config shell command, run through adb or a local shell.
package shellstore

import (
	"bufio"
	"context"
	"maps"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	deviceflags "github.com/evo-company/deviceflags-go"
)

// device_config prints this for unset keys.
const nullValue = "null"

var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Store runs device_config for every operation. The shell user already holds
// the device config permissions, so scopes are not checked.
type Store struct {
	adb    string
	serial string
	local  bool
	logger logrus.FieldLogger
}

type Option func(*Store)

// WithSerial targets the adb device with serial.
func WithSerial(serial string) Option {
	return func(s *Store) {
		s.serial = serial
	}
}

// WithADB sets the adb binary.
func WithADB(path string) Option {
	return func(s *Store) {
		s.adb = path
	}
}

// Local runs device_config through sh on this host instead of adb.
func Local() Option {
	return func(s *Store) {
		s.local = true
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		adb:    "adb",
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) command(args ...string) (string, []string) {
	remote := shellquote.Join(append([]string{"device_config"}, args...)...)
	if s.local {
		return "sh", []string{"-c", remote}
	}

	adbArgs := make([]string, 0, 4)
	if s.serial != "" {
		adbArgs = append(adbArgs, "-s", s.serial)
	}
	return s.adb, append(adbArgs, "shell", remote)
}

func (s *Store) run(ctx context.Context, args ...string) (string, error) {
	name, cmdArgs := s.command(args...)
	s.logger.WithFields(logrus.Fields{
		"cmd":  name,
		"args": cmdArgs,
	}).Debug("running device_config")

	output, err := runCommand(ctx, name, cmdArgs...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", errors.Wrap(err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (s *Store) get(ctx context.Context, namespace, key string) (string, bool, error) {
	// Unset keys print null and exit 0; a non-zero exit is an adb failure.
	output, err := s.run(ctx, "get", namespace, key)
	if err != nil {
		return "", false, errors.Wrapf(err, "device_config get %s %s", namespace, key)
	}
	if output == nullValue {
		return "", false, nil
	}
	return output, true, nil
}

func (s *Store) GetBoolean(ctx context.Context, namespace, key string, def bool) (bool, error) {
	value, ok, err := s.get(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return deviceflags.ParseBoolean(value), nil
}

func (s *Store) list(ctx context.Context, namespace string) (map[string]string, error) {
	output, err := s.run(ctx, "list", namespace)
	if err != nil {
		return nil, errors.Wrapf(err, "device_config list %s", namespace)
	}
	return parseList(output), nil
}

func (s *Store) GetProperties(ctx context.Context, namespace string) (deviceflags.Properties, error) {
	values, err := s.list(ctx, namespace)
	if err != nil {
		return deviceflags.Properties{}, err
	}
	return deviceflags.NewProperties(namespace, values), nil
}

// SetProperty puts value and reads it back; a different read means the
// device did not apply the write.
func (s *Store) SetProperty(ctx context.Context, namespace, key, value string, makeDefault bool) (bool, error) {
	args := []string{"put", namespace, key, value}
	if makeDefault {
		args = append(args, "default")
	}
	if _, err := s.run(ctx, args...); err != nil {
		return false, errors.Wrapf(err, "device_config put %s %s", namespace, key)
	}

	got, ok, err := s.get(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	applied := ok && got == value
	if !applied {
		s.logger.WithFields(logrus.Fields{
			"namespace": namespace,
			"key":       key,
			"want":      value,
			"got":       got,
		}).Warn("device_config put did not apply")
	}
	return applied, nil
}

// SetProperties deletes keys of the namespace that props does not carry, puts
// the rest and compares the resulting listing with props.
func (s *Store) SetProperties(ctx context.Context, props deviceflags.Properties) (bool, error) {
	current, err := s.list(ctx, props.Namespace)
	if err != nil {
		return false, err
	}

	want := props.Map()
	for key := range current {
		if _, ok := want[key]; ok {
			continue
		}
		if _, err := s.run(ctx, "delete", props.Namespace, key); err != nil {
			return false, errors.Wrapf(err, "device_config delete %s %s", props.Namespace, key)
		}
	}
	for _, key := range props.Keys() {
		if value, ok := current[key]; ok && value == want[key] {
			continue
		}
		if _, err := s.run(ctx, "put", props.Namespace, key, want[key]); err != nil {
			return false, errors.Wrapf(err, "device_config put %s %s", props.Namespace, key)
		}
	}

	after, err := s.list(ctx, props.Namespace)
	if err != nil {
		return false, err
	}
	return maps.Equal(after, want), nil
}

func parseList(output string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[key] = value
	}
	return values
}
