package config

import (
	"context"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// EnvPrefix is prepended to every configuration key read from the environment.
const EnvPrefix = "VALIDATION"

// legacyEnv lists the unprefixed variable names the service has always accepted.
var legacyEnv = map[string]string{
	"server.ip":                 "IP",
	"server.port":               "PORT",
	"keys.signing_key_file":     "SIGNING_KEY_FILE",
	"keys.generate_signing_key": "GENERATE_SIGNING_KEY",
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"ip":                   "server.ip",
	"port":                 "server.port",
	"signing-key-file":     "keys.signing_key_file",
	"generate-signing-key": "keys.generate_signing_key",
	"key-source":           "keys.source",
	"http-port":            "http.port",
	"log-level":            "log.level",
}

// Loader reads configuration from defaults, an optional YAML file, a .env file,
// the environment and command line flags, in increasing order of precedence.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader creates a loader with every default applied.
func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	v := viper.New()
	setDefaults(v)
	return &Loader{v: v, log: log.WithComponent("config")}
}

// RegisterFlags defines the server flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("env-file", ".env", "path to a dotenv file, ignored when missing")
	fs.String("ip", constants.DefaultIP, "gRPC listen address")
	fs.Int("port", constants.DefaultGRPCPort, "gRPC listen port")
	fs.String("signing-key-file", constants.DefaultSigningKeyFile, "PKCS#8 PEM file holding the Ed25519 signing key")
	fs.Bool("generate-signing-key", false, "generate an ephemeral signing key instead of loading one")
	fs.String("key-source", string(constants.KeySourceFile), "signing key source: file, generate or vault")
	fs.Int("http-port", constants.DefaultHTTPPort, "ops HTTP listen port")
	fs.String("log-level", string(constants.LogLevelInfo), "log level")
}

// BindFlags binds the flags defined by RegisterFlags. Only flags that were set
// explicitly override other sources.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return errors.Wrap(err, "failed to bind flag "+name)
		}
	}
	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		l.v.SetConfigFile(f.Value.String())
	}
	if f := fs.Lookup("env-file"); f != nil {
		l.v.Set("env_file", f.Value.String())
	}
	return nil
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	ctx := context.Background()
	v := l.v

	envFile := v.GetString("env_file")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load env file "+envFile)
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/validation-service/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	} else {
		l.log.Info(ctx, "Loaded config file", logger.String("path", v.ConfigFileUsed()))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, errors.Wrap(err, "failed to bind env "+legacy)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.Keys.GenerateSigningKey {
		cfg.Keys.Source = string(constants.KeySourceGenerate)
	}
	cfg.Signing.QRRecoveryLevel = strings.ToLower(cfg.Signing.QRRecoveryLevel)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WatchLogLevel invokes onChange with the new level whenever the config file
// changes. It is a no-op when no config file was read.
func (l *Loader) WatchLogLevel(onChange func(constants.LogLevel)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := constants.LogLevel(strings.ToLower(l.v.GetString("log.level")))
		l.log.Info(context.Background(), "Config file changed",
			logger.String("path", e.Name),
			logger.String("log_level", string(level)),
		)
		onChange(level)
	})
	l.v.WatchConfig()
}

// LoadConfig loads the configuration from file, environment variables, and command line.
func LoadConfig(log logger.Logger, fs *pflag.FlagSet) (*Config, error) {
	l := NewLoader(log)
	if fs != nil {
		if err := l.BindFlags(fs); err != nil {
			return nil, err
		}
	}
	return l.Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ip", constants.DefaultIP)
	v.SetDefault("server.port", constants.DefaultGRPCPort)
	v.SetDefault("server.request_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("server.reflection", true)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.ip", constants.DefaultIP)
	v.SetDefault("http.port", constants.DefaultHTTPPort)
	v.SetDefault("http.pprof", false)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("keys.source", string(constants.KeySourceFile))
	v.SetDefault("keys.signing_key_file", constants.DefaultSigningKeyFile)
	v.SetDefault("keys.generate_signing_key", false)
	v.SetDefault("keys.vault_path", "validation-service/signing-key")
	v.SetDefault("keys.vault_field", "private_key")

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.timeout", "10s")

	v.SetDefault("signing.claims_policy", string(constants.ClaimsPolicyClaims))
	v.SetDefault("signing.response_mode", string(constants.ResponseModeQR))
	v.SetDefault("signing.strict_claims", false)
	v.SetDefault("signing.qr_recovery_level", "medium")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.backend", string(constants.RateLimitBackendMemory))
	v.SetDefault("rate_limit.requests_per_minute", constants.DefaultRateLimitPerMinute)
	v.SetDefault("rate_limit.burst", constants.DefaultRateLimitBurst)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.key_prefix", "validation:ratelimit:")

	v.SetDefault("audit.sink", string(constants.AuditSinkLog))
	v.SetDefault("audit.kafka.brokers", []string{})
	v.SetDefault("audit.kafka.topic", "ticket-signatures")
	v.SetDefault("audit.kafka.batch_timeout", "1s")

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", string(constants.LogFormatJSON))

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sample_ratio", 1.0)
}
