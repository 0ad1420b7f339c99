package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "s3"
)

type Provider string

const (
	ProviderMinio  Provider = "minio"
	ProviderAWS    Provider = "aws"
	ProviderMemory Provider = "memory"
)

const (
	DefaultDataDir  = "./data"
	DefaultRetries  = 5
	DefaultLogLevel = "info"
)

// Remote holds the parameters of the remote object store.
type Remote struct {
	Provider  Provider
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Retries   int
	UseSSL    bool
	PathStyle bool
}

type Config struct {
	Backend  Backend
	DataDir  string
	LogLevel string
	Remote   Remote
}

type ConfigOption func(*Config)

func WithBackend(backend Backend) ConfigOption {
	return func(cfg *Config) {
		cfg.Backend = backend
	}
}

func WithDataDir(dataDir string) ConfigOption {
	return func(cfg *Config) {
		cfg.DataDir = dataDir
	}
}

func WithRemote(remote Remote) ConfigOption {
	return func(cfg *Config) {
		cfg.Remote = remote
	}
}

func WithRetries(retries int) ConfigOption {
	return func(cfg *Config) {
		cfg.Remote.Retries = retries
	}
}

// NewConfig returns a Config populated with defaults and then the given
// options.
func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{
		Backend:  BackendLocal,
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Remote: Remote{
			Provider: ProviderMinio,
			Retries:  DefaultRetries,
			UseSSL:   true,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Keys read from the environment (or a config file using the same names).
const (
	KeyBackend   = "stash_backend"
	KeyDataDir   = "stash_data_dir"
	KeyLogLevel  = "stash_log_level"
	KeyProvider  = "s3_provider"
	KeyRegion    = "s3_region"
	KeyEndpoint  = "s3_endpoint"
	KeyAccessKey = "s3_access_key"
	KeySecretKey = "s3_secret_key"
	KeyBucket    = "s3_bucket"
	KeyRetries   = "s3_retries"
	KeyUseSSL    = "s3_use_ssl"
	KeyPathStyle = "s3_path_style"
)

// Load builds a Config from v. Environment variables take precedence over
// any config file v has been pointed at.
func Load(v *viper.Viper) (Config, error) {
	defaults := NewConfig()

	v.SetDefault(KeyBackend, string(defaults.Backend))
	v.SetDefault(KeyDataDir, defaults.DataDir)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyProvider, string(defaults.Remote.Provider))
	v.SetDefault(KeyRetries, defaults.Remote.Retries)
	v.SetDefault(KeyUseSSL, defaults.Remote.UseSSL)
	v.SetDefault(KeyPathStyle, false)
	v.AutomaticEnv()

	// Plain decimal; cast would read "010" as octal.
	retries, err := strconv.Atoi(v.GetString(KeyRetries))
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", strings.ToUpper(KeyRetries), err)
	}
	if retries < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %d", strings.ToUpper(KeyRetries), retries)
	}

	useSSL, err := cast.ToBoolE(v.Get(KeyUseSSL))
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", strings.ToUpper(KeyUseSSL), err)
	}

	pathStyle, err := cast.ToBoolE(v.Get(KeyPathStyle))
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", strings.ToUpper(KeyPathStyle), err)
	}

	cfg := NewConfig(
		WithBackend(Backend(strings.ToLower(v.GetString(KeyBackend)))),
		WithDataDir(v.GetString(KeyDataDir)),
		WithRemote(Remote{
			Provider:  Provider(strings.ToLower(v.GetString(KeyProvider))),
			Region:    v.GetString(KeyRegion),
			Endpoint:  v.GetString(KeyEndpoint),
			AccessKey: v.GetString(KeyAccessKey),
			SecretKey: v.GetString(KeySecretKey),
			Bucket:    v.GetString(KeyBucket),
			Retries:   retries,
			UseSSL:    useSSL,
			PathStyle: pathStyle,
		}),
	)
	cfg.LogLevel = v.GetString(KeyLogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the fields that select code paths. Remote parameters are
// checked when the object store client is built.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DataDir == "" {
			return errors.New("data directory must not be empty")
		}
	case BackendRemote:
		switch c.Remote.Provider {
		case ProviderMinio, ProviderAWS, ProviderMemory:
		default:
			return fmt.Errorf("unknown remote provider %q", c.Remote.Provider)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}
