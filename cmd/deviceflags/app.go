package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	deviceflags "github.com/evo-company/deviceflags-go"
	"github.com/evo-company/deviceflags-go/filestore"
	"github.com/evo-company/deviceflags-go/internal/config"
	"github.com/evo-company/deviceflags-go/memstore"
	"github.com/evo-company/deviceflags-go/redisstore"
	"github.com/evo-company/deviceflags-go/shellstore"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	lookuper envconfig.Lookuper
	cfg      config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	flags    *deviceflags.Flags
	closers  []func() error
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Parse(a.lookuper)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger.SetLevel(cfg.Level())

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	metrics, err := deviceflags.NewStoreMetrics(a.registry)
	if err != nil {
		return errors.Wrap(err, "register metrics")
	}

	opts := append(cfg.FlagsOptions(),
		deviceflags.WithLogger(a.logger),
		deviceflags.WithResources(filestore.NewResources(afero.NewOsFs(), cfg.ResourcesFile)),
	)
	a.flags = deviceflags.New(deviceflags.InstrumentStore(store, metrics), opts...)

	a.logger.WithFields(logrus.Fields{
		"backend":   cfg.Backend,
		"namespace": cfg.Namespace,
		"flag":      cfg.FlagName,
	}).Debug("device flags ready")
	return nil
}

func (a *app) openStore(ctx context.Context) (deviceflags.Store, error) {
	switch a.cfg.Backend {
	case config.BackendShell:
		opts := []shellstore.Option{
			shellstore.WithADB(a.cfg.ADB),
			shellstore.WithSerial(a.cfg.Serial),
			shellstore.WithLogger(a.logger),
		}
		if a.cfg.Local {
			opts = append(opts, shellstore.Local())
		}
		return shellstore.New(opts...), nil
	case config.BackendRedis:
		store, err := redisstore.Dial(ctx, a.cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendFile:
		return filestore.New(afero.NewOsFs(), a.cfg.Dir, a.logger), nil
	case config.BackendMem:
		return memstore.New(), nil
	}
	return nil, errors.Errorf("unknown backend %q", a.cfg.Backend)
}

func (a *app) teardown() error {
	var result error
	for _, closer := range a.closers {
		if err := closer(); err != nil && result == nil {
			result = err
		}
	}

	if a.cfg.MetricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			a.logger.WithError(err).Warn("could not write metrics")
		}
	}
	return result
}
