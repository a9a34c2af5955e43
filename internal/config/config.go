package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/filter"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix           = "POLLCTL"
	DefaultPollInterval        = 10
	DefaultPeriod              = 1000
	DefaultAttenuation         = 4
	DefaultLogLevel            = "info"
	DefaultSource              = SourceSynthetic
	DefaultGPUMetric           = GPUMetricTemperature
	DefaultMetricsDB           = "/var/lib/pollctl/metrics.db"
	DefaultMetricsBatchSize    = 10
	DefaultMetricsBatchTimeout = 5
	DefaultMaxReadFailures     = 5

	configName = "pollctl"
	configType = "toml"
)

type Config struct {
	PollInterval        int    `mapstructure:"poll_interval"`
	Period              int    `mapstructure:"period"`
	Warmup              int    `mapstructure:"warmup"`
	Attenuation         int    `mapstructure:"attenuation"`
	InitialValue        int    `mapstructure:"initial_value"`
	Source              string `mapstructure:"source"`
	Command             string `mapstructure:"command"`
	GPUIndex            int    `mapstructure:"gpu_index"`
	GPUMetric           string `mapstructure:"gpu_metric"`
	MaxReadFailures     int    `mapstructure:"max_read_failures"`
	LogLevel            string `mapstructure:"log_level"`
	Metrics             bool   `mapstructure:"metrics"`
	MetricsDB           string `mapstructure:"metrics_db"`
	MetricsBatchSize    int    `mapstructure:"metrics_batch_size"`
	MetricsBatchTimeout int    `mapstructure:"metrics_batch_timeout"`
}

// Load reads configuration from defaults, an optional TOML file,
// environment variables and command line flags, in increasing order of
// precedence, and validates the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(flagKey(f.Name), f); err != nil {
			panic(err) // only fails on a nil flag
		}
	})

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, configPath(fs, o)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("period", DefaultPeriod)
	v.SetDefault("warmup", 0)
	v.SetDefault("attenuation", DefaultAttenuation)
	v.SetDefault("initial_value", 0)
	v.SetDefault("source", DefaultSource)
	v.SetDefault("command", "")
	v.SetDefault("gpu_index", 0)
	v.SetDefault("gpu_metric", DefaultGPUMetric)
	v.SetDefault("max_read_failures", DefaultMaxReadFailures)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("metrics_batch_size", DefaultMetricsBatchSize)
	v.SetDefault("metrics_batch_timeout", DefaultMetricsBatchTimeout)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)

	fs.String("config", "", "Path to a TOML configuration file")
	fs.Int("poll-interval", DefaultPollInterval, "Milliseconds between samples")
	fs.Int("period", DefaultPeriod, "Milliseconds between reports of the filtered value")
	fs.Int("warmup", 0, "Milliseconds to let the filter settle before the first report")
	fs.Int("attenuation", DefaultAttenuation, "Filter attenuation factor in bits")
	fs.Int("initial-value", 0, "Filter seed value")
	fs.String("source", DefaultSource, "Sample source: synthetic, command or nvml")
	fs.String("command", "", "Command printing one unsigned integer per run (command source)")
	fs.Int("gpu-index", 0, "GPU index (nvml source)")
	fs.String("gpu-metric", DefaultGPUMetric, "GPU metric: temperature or power (nvml source)")
	fs.Int("max-read-failures", DefaultMaxReadFailures, "Consecutive read failures before giving up")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("metrics", false, "Record reports to the metrics database")
	fs.String("metrics-db", DefaultMetricsDB, "Path to the metrics database")
	fs.Int("metrics-batch-size", DefaultMetricsBatchSize, "Reports buffered before a write")
	fs.Int("metrics-batch-timeout", DefaultMetricsBatchTimeout, "Seconds between forced metrics flushes")

	return fs
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// configPath picks the file to read: explicit option, then --config, then
// the <PREFIX>_CONFIG environment variable. Empty means search defaults.
func configPath(fs *pflag.FlagSet, o options) string {
	if o.configPath != "" {
		return o.configPath
	}
	if path, err := fs.GetString("config"); err == nil && path != "" {
		return path
	}

	return os.Getenv(o.envPrefix + "_CONFIG")
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath("/etc")
	if home, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, configName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.PollInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PollInterval)
	}

	// Deadlines must stay within half the 32-bit clock range.
	if c.Period <= 0 || c.Period > math.MaxInt32 {
		return errFactory.WithData(errors.ErrInvalidPeriod, c.Period)
	}
	if c.PollInterval > c.Period {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			PollInterval int
			Period       int
		}{c.PollInterval, c.Period})
	}
	if c.Warmup < 0 || c.Warmup > math.MaxInt32 {
		return errFactory.WithData(errors.ErrInvalidPeriod, c.Warmup)
	}

	if c.Attenuation < 0 || c.Attenuation > math.MaxUint8 ||
		!filter.Fits[uint16, uint32](uint8(c.Attenuation)) {
		return errFactory.WithData(errors.ErrInvalidAttenuation, c.Attenuation)
	}
	if c.InitialValue < 0 || c.InitialValue > math.MaxUint16 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"initial_value", c.InitialValue})
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.Source {
	case SourceSynthetic:
	case SourceCommand:
		if strings.TrimSpace(c.Command) == "" {
			return errFactory.WithData(errors.ErrInvalidConfig, "command source requires a command")
		}
	case SourceNVML:
		if c.GPUMetric != GPUMetricTemperature && c.GPUMetric != GPUMetricPower {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value string
			}{"gpu_metric", c.GPUMetric})
		}
		if c.GPUIndex < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value int
			}{"gpu_index", c.GPUIndex})
		}
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{"source", c.Source})
	}

	if c.MaxReadFailures < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"max_read_failures", c.MaxReadFailures})
	}

	if c.Metrics && c.MetricsDB == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics enabled without metrics_db")
	}

	return nil
}
