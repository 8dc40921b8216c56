// Package filestore keeps device config namespaces as YAML files, one
// <namespace>.yaml per namespace, on an afero filesystem.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	deviceflags "github.com/evo-company/deviceflags-go"
)

// ErrorInvalidNamespace is returned for namespaces that do not name a file
// directly inside the store directory.
var ErrorInvalidNamespace = errors.New("invalid namespace")

type Store struct {
	fs     afero.Afero
	dir    string
	logger logrus.FieldLogger
	mu     sync.Mutex
}

func New(fs afero.Fs, dir string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		fs:     afero.Afero{Fs: fs},
		dir:    dir,
		logger: logger,
	}
}

func (s *Store) path(namespace string) (string, error) {
	if namespace == "" || strings.Contains(namespace, "..") || strings.ContainsAny(namespace, `/\`+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrorInvalidNamespace, "%q", namespace)
	}
	return filepath.Join(s.dir, namespace+".yaml"), nil
}

func (s *Store) read(namespace string) (map[string]string, error) {
	path, err := s.path(namespace)
	if err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return values, nil
}

// write reports false without an error when the filesystem refuses the write.
func (s *Store) write(namespace string, values map[string]string) (bool, error) {
	path, err := s.path(namespace)
	if err != nil {
		return false, err
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return false, errors.Wrapf(err, "encode %s", namespace)
	}

	err = s.fs.MkdirAll(s.dir, 0o755)
	if err == nil {
		err = s.fs.WriteFile(path, data, 0o644)
	}
	if os.IsPermission(err) {
		s.logger.WithField("path", path).WithError(err).Warn("device config write refused")
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "write %s", path)
	}
	return true, nil
}

func (s *Store) GetBoolean(_ context.Context, namespace, key string, def bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read(namespace)
	if err != nil {
		return false, err
	}
	value, ok := values[key]
	if !ok {
		return def, nil
	}
	return deviceflags.ParseBoolean(value), nil
}

func (s *Store) GetProperties(_ context.Context, namespace string) (deviceflags.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read(namespace)
	if err != nil {
		return deviceflags.Properties{}, err
	}
	return deviceflags.NewProperties(namespace, values), nil
}

// SetProperty rewrites the namespace file with key set. makeDefault is
// ignored.
func (s *Store) SetProperty(_ context.Context, namespace, key, value string, makeDefault bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read(namespace)
	if err != nil {
		return false, err
	}
	values[key] = value
	return s.write(namespace, values)
}

func (s *Store) SetProperties(_ context.Context, props deviceflags.Properties) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(props.Namespace, props.Map())
}

// Resources reads boolean resources from a YAML mapping of name to bool.
type Resources struct {
	fs   afero.Afero
	path string
}

func NewResources(fs afero.Fs, path string) *Resources {
	return &Resources{fs: afero.Afero{Fs: fs}, path: path}
}

func (r *Resources) Bool(_ context.Context, name string) (bool, error) {
	data, err := r.fs.ReadFile(r.path)
	if err != nil {
		return false, errors.Wrapf(err, "read resources %s", r.path)
	}

	resources := map[string]bool{}
	if err := yaml.Unmarshal(data, &resources); err != nil {
		return false, errors.Wrapf(err, "parse resources %s", r.path)
	}

	value, ok := resources[name]
	if !ok {
		return false, errors.Wrap(deviceflags.ErrorResourceNotFound, name)
	}
	return value, nil
}
