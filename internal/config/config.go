package config

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Keys      KeysConfig      `mapstructure:"keys"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Signing   SigningConfig   `mapstructure:"signing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	IP              string        `mapstructure:"ip"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Reflection      bool          `mapstructure:"reflection"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// Addr returns the gRPC listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	IP             string   `mapstructure:"ip"`
	Port           int      `mapstructure:"port"`
	PProf          bool     `mapstructure:"pprof"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Addr returns the ops HTTP listen address.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

type KeysConfig struct {
	Source             string `mapstructure:"source"`
	SigningKeyFile     string `mapstructure:"signing_key_file"`
	GenerateSigningKey bool   `mapstructure:"generate_signing_key"`
	VaultPath          string `mapstructure:"vault_path"`
	VaultField         string `mapstructure:"vault_field"`
}

type VaultConfig struct {
	Address   string        `mapstructure:"address"`
	Token     string        `mapstructure:"token"`
	MountPath string        `mapstructure:"mount_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SigningConfig struct {
	ClaimsPolicy    string `mapstructure:"claims_policy"`
	ResponseMode    string `mapstructure:"response_mode"`
	StrictClaims    bool   `mapstructure:"strict_claims"`
	QRRecoveryLevel string `mapstructure:"qr_recovery_level"`
}

type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Backend           string `mapstructure:"backend"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type AuditConfig struct {
	Sink  string      `mapstructure:"sink"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.RequestTimeout <= 0 {
		return invalid("server.request_timeout", "must be positive")
	}
	if _, err := ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return invalid("server.trusted_proxies", err.Error())
	}
	if _, err := ParseTrustedProxies(c.HTTP.TrustedProxies); err != nil {
		return invalid("http.trusted_proxies", err.Error())
	}
	if c.HTTP.Enabled {
		if err := validPort("http.port", c.HTTP.Port); err != nil {
			return err
		}
		if c.HTTP.Port == c.Server.Port && c.HTTP.IP == c.Server.IP {
			return invalid("http.port", "must differ from server.port")
		}
	}

	switch constants.KeySource(c.Keys.Source) {
	case constants.KeySourceFile:
		if c.Keys.SigningKeyFile == "" {
			return invalid("keys.signing_key_file", "required when keys.source is file")
		}
	case constants.KeySourceGenerate:
	case constants.KeySourceVault:
		if c.Vault.Address == "" || c.Keys.VaultPath == "" {
			return invalid("vault.address", "vault.address and keys.vault_path are required when keys.source is vault")
		}
	default:
		return invalid("keys.source", fmt.Sprintf("unknown key source %q", c.Keys.Source))
	}

	switch constants.ClaimsPolicy(c.Signing.ClaimsPolicy) {
	case constants.ClaimsPolicyClaims, constants.ClaimsPolicyVerbatim:
	default:
		return invalid("signing.claims_policy", fmt.Sprintf("unknown claims policy %q", c.Signing.ClaimsPolicy))
	}
	switch constants.ResponseMode(c.Signing.ResponseMode) {
	case constants.ResponseModeQR, constants.ResponseModePackage, constants.ResponseModeBoth:
	default:
		return invalid("signing.response_mode", fmt.Sprintf("unknown response mode %q", c.Signing.ResponseMode))
	}
	switch c.Signing.QRRecoveryLevel {
	case "low", "medium", "high", "highest":
	default:
		return invalid("signing.qr_recovery_level", fmt.Sprintf("unknown recovery level %q", c.Signing.QRRecoveryLevel))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
			return invalid("rate_limit", "requests_per_minute and burst must be positive")
		}
		switch constants.RateLimitBackend(c.RateLimit.Backend) {
		case constants.RateLimitBackendMemory:
		case constants.RateLimitBackendRedis:
			if c.Redis.Address == "" {
				return invalid("redis.address", "required when rate_limit.backend is redis")
			}
		default:
			return invalid("rate_limit.backend", fmt.Sprintf("unknown backend %q", c.RateLimit.Backend))
		}
	}

	switch constants.AuditSink(c.Audit.Sink) {
	case constants.AuditSinkLog, constants.AuditSinkNone:
	case constants.AuditSinkKafka:
		if len(c.Audit.Kafka.Brokers) == 0 || c.Audit.Kafka.Topic == "" {
			return invalid("audit.kafka", "brokers and topic are required when audit.sink is kafka")
		}
	default:
		return invalid("audit.sink", fmt.Sprintf("unknown audit sink %q", c.Audit.Sink))
	}

	switch constants.LogLevel(c.Log.Level) {
	case constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn, constants.LogLevelError, constants.LogLevelFatal:
	default:
		return invalid("log.level", fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return invalid("tracing.jaeger_endpoint", "required when tracing is enabled")
	}
	return nil
}

func validPort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return invalid(key, fmt.Sprintf("port %d out of range", port))
	}
	return nil
}

func invalid(key, reason string) error {
	return errors.ErrInvalidArgument(fmt.Sprintf("invalid config %s: %s", key, reason)).
		WithMetadata("key", key)
}

// ParseTrustedProxies parses IP addresses and CIDR prefixes. A bare address
// becomes a single host prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy prefix %q", e)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q", e)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
