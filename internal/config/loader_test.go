package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// isolate runs the test in an empty directory so no stray config.yaml or .env
// is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(logger.NewNoopLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:50051", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, string(constants.KeySourceFile), cfg.Keys.Source)
	assert.Equal(t, "sign_key.env", cfg.Keys.SigningKeyFile)
	assert.Equal(t, string(constants.ClaimsPolicyClaims), cfg.Signing.ClaimsPolicy)
	assert.Equal(t, string(constants.ResponseModeQR), cfg.Signing.ResponseMode)
	assert.Equal(t, "medium", cfg.Signing.QRRecoveryLevel)
	assert.False(t, cfg.Signing.StrictClaims)
	assert.Equal(t, string(constants.AuditSinkLog), cfg.Audit.Sink)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	isolate(t)
	t.Setenv("IP", "127.0.0.1")
	t.Setenv("PORT", "6000")
	t.Setenv("SIGNING_KEY_FILE", "/run/secrets/key.pem")
	t.Setenv("GENERATE_SIGNING_KEY", "true")

	cfg, err := LoadConfig(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Server.Addr())
	assert.Equal(t, "/run/secrets/key.pem", cfg.Keys.SigningKeyFile)
	assert.True(t, cfg.Keys.GenerateSigningKey)
	assert.Equal(t, string(constants.KeySourceGenerate), cfg.Keys.Source)
}

func TestLoadConfig_PrefixedEnvWinsOverLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "6000")
	t.Setenv("VALIDATION_SERVER_PORT", "7000")
	t.Setenv("VALIDATION_SIGNING_RESPONSE_MODE", "both")
	t.Setenv("VALIDATION_AUDIT_SINK", "none")

	cfg, err := LoadConfig(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, string(constants.ResponseModeBoth), cfg.Signing.ResponseMode)
	assert.Equal(t, string(constants.AuditSinkNone), cfg.Audit.Sink)
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7100
  request_timeout: 3s
signing:
  claims_policy: verbatim
  strict_claims: true
  qr_recovery_level: HIGH
log:
  level: debug
`), 0o600))

	fs := newFlags(t, "--config", path, "--port", "7200")
	cfg, err := LoadConfig(nil, fs)
	require.NoError(t, err)

	assert.Equal(t, 7200, cfg.Server.Port, "explicit flag wins over file")
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, string(constants.ClaimsPolicyVerbatim), cfg.Signing.ClaimsPolicy)
	assert.True(t, cfg.Signing.StrictClaims)
	assert.Equal(t, "high", cfg.Signing.QRRecoveryLevel)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_UnsetFlagDoesNotOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("VALIDATION_SERVER_PORT", "7300")

	cfg, err := LoadConfig(nil, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 7300, cfg.Server.Port)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := isolate(t)
	const key = "VALIDATION_SIGNING_CLAIMS_POLICY"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=verbatim\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	cfg, err := LoadConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, string(constants.ClaimsPolicyVerbatim), cfg.Signing.ClaimsPolicy)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := LoadConfig(nil, newFlags(t, "--config", filepath.Join(dir, "absent.yaml")))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{"unknown policy", map[string]string{"VALIDATION_SIGNING_CLAIMS_POLICY": "everything"}, "signing.claims_policy"},
		{"unknown response mode", map[string]string{"VALIDATION_SIGNING_RESPONSE_MODE": "pdf"}, "signing.response_mode"},
		{"unknown recovery level", map[string]string{"VALIDATION_SIGNING_QR_RECOVERY_LEVEL": "ultra"}, "signing.qr_recovery_level"},
		{"bad port", map[string]string{"PORT": "70000"}, "server.port"},
		{"unknown key source", map[string]string{"VALIDATION_KEYS_SOURCE": "hsm"}, "keys.source"},
		{"vault without address", map[string]string{"VALIDATION_KEYS_SOURCE": "vault"}, "vault.address"},
		{"redis backend without address", map[string]string{
			"VALIDATION_RATE_LIMIT_ENABLED": "true",
			"VALIDATION_RATE_LIMIT_BACKEND": "redis",
		}, "redis.address"},
		{"kafka without brokers", map[string]string{"VALIDATION_AUDIT_SINK": "kafka"}, "audit.kafka"},
		{"tracing without endpoint", map[string]string{"VALIDATION_TRACING_ENABLED": "true"}, "tracing.jaeger_endpoint"},
		{"bad trusted proxy", map[string]string{"VALIDATION_SERVER_TRUSTED_PROXIES": "proxy.internal"}, "server.trusted_proxies"},
		{"bad http trusted proxy", map[string]string{"VALIDATION_HTTP_TRUSTED_PROXIES": "10.0.0.0/99"}, "http.trusted_proxies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(nil, nil)
			require.Error(t, err)
			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeInvalidArgument, appErr.Code())
			assert.Equal(t, tt.key, appErr.Metadata()["key"])
		})
	}
}

func TestLoader_WatchLogLevel(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	l := NewLoader(nil)
	require.NoError(t, l.BindFlags(newFlags(t, "--config", path)))
	_, err := l.Load()
	require.NoError(t, err)

	var got atomic.Value
	l.WatchLogLevel(func(level constants.LogLevel) { got.Store(level) })

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	assert.Eventually(t, func() bool {
		v, _ := got.Load().(constants.LogLevel)
		return v == constants.LogLevelDebug
	}, 5*time.Second, 50*time.Millisecond)
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.7 ", "", "::ffff:198.51.100.1", "2001:db8::/32"})
	require.NoError(t, err)
	require.Len(t, prefixes, 4)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.7/32", prefixes[1].String())
	assert.Equal(t, "198.51.100.1/32", prefixes[2].String())
	assert.Equal(t, "2001:db8::/32", prefixes[3].String())

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}
