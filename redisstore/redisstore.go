// Package redisstore keeps device config namespaces in Redis hashes, one hash
// per namespace.
package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	deviceflags "github.com/evo-company/deviceflags-go"
)

const defaultPrefix = "deviceconfig:"

type Store struct {
	client *redis.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the prefix of the hash keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", addr)
	}
	return New(client, opts...), nil
}

func (s *Store) key(namespace string) string {
	return s.prefix + namespace
}

func (s *Store) GetBoolean(ctx context.Context, namespace, key string, def bool) (bool, error) {
	value, err := s.client.HGet(ctx, s.key(namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "hget %s %s", s.key(namespace), key)
	}
	return deviceflags.ParseBoolean(value), nil
}

func (s *Store) GetProperties(ctx context.Context, namespace string) (deviceflags.Properties, error) {
	values, err := s.client.HGetAll(ctx, s.key(namespace)).Result()
	if err != nil {
		return deviceflags.Properties{}, errors.Wrapf(err, "hgetall %s", s.key(namespace))
	}
	return deviceflags.NewProperties(namespace, values), nil
}

// SetProperty writes the field. Redis has no default layer, so makeDefault is
// ignored. A write applies unless Redis reports an error.
func (s *Store) SetProperty(ctx context.Context, namespace, key, value string, makeDefault bool) (bool, error) {
	if err := s.client.HSet(ctx, s.key(namespace), key, value).Err(); err != nil {
		return false, errors.Wrapf(err, "hset %s %s", s.key(namespace), key)
	}
	return true, nil
}

// SetProperties replaces the hash in one MULTI/EXEC.
func (s *Store) SetProperties(ctx context.Context, props deviceflags.Properties) (bool, error) {
	key := s.key(props.Namespace)
	values := props.Map()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "replace %s", key)
	}
	return true, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
