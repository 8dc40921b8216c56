package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"

	deviceflags "github.com/evo-company/deviceflags-go"
)

const (
	BackendShell = "shell"
	BackendRedis = "redis"
	BackendFile  = "file"
	BackendMem   = "mem"
)

type Config struct {
	Backend       string `env:"DEVICEFLAGS_BACKEND,default=shell"`
	Namespace     string `env:"DEVICEFLAGS_NAMESPACE,default=privacy"`
	FlagName      string `env:"DEVICEFLAGS_FLAG,default=safety_center_is_enabled"`
	Resource      string `env:"DEVICEFLAGS_RESOURCE,default=config_enableSafetyCenter"`
	ResourcesFile string `env:"DEVICEFLAGS_RESOURCES_FILE,default=./resources.yaml"`
	ADB           string `env:"DEVICEFLAGS_ADB,default=adb"`
	Serial        string `env:"DEVICEFLAGS_ADB_SERIAL"`
	Local         bool   `env:"DEVICEFLAGS_LOCAL,default=false"`
	RedisAddr     string `env:"DEVICEFLAGS_REDIS_ADDR,default=localhost:6379"`
	Dir           string `env:"DEVICEFLAGS_DIR,default=./deviceconfig"`
	LogLevel      string `env:"DEVICEFLAGS_LOG_LEVEL,default=info"`
	MetricsFile   string `env:"DEVICEFLAGS_METRICS_FILE"`
}

// Parse resolves the config from lookuper, usually envconfig.OsLookuper().
func Parse(lookuper envconfig.Lookuper) (Config, error) {
	ctx, ctxCancel := context.WithTimeout(context.Background(), time.Second)
	defer ctxCancel()

	c := Config{}
	if err := envconfig.ProcessWith(ctx, &c, lookuper); err != nil {
		return Config{}, errors.Wrap(err, "resolving config: envconfig.Process")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendShell, BackendRedis, BackendFile, BackendMem:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.Namespace == "" {
		return errors.New("empty namespace not valid")
	}
	if c.FlagName == "" {
		return errors.New("empty flag name not valid")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

// Level returns the parsed log level; call after Validate.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// FlagsOptions maps the config onto deviceflags options.
func (c Config) FlagsOptions() []deviceflags.Option {
	return []deviceflags.Option{
		deviceflags.WithNamespace(c.Namespace),
		deviceflags.WithFlagName(c.FlagName),
		deviceflags.WithResourceName(c.Resource),
	}
}
