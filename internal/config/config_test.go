package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepvio-subscription/internal/domain/model"
)

const minimalYAML = `
database:
  url: postgres://localhost/prepvio
redis:
  url: redis://localhost:6379
auth:
  jwt_secret: secret
payment:
  key_id: rzp_test
  key_secret: shh
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML), false)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "razorpay", cfg.Payment.Provider)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, 10*time.Second, cfg.Payment.OrderTimeout)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.Equal(t, DefaultPlans(), cfg.Plans)
	assert.False(t, cfg.Runtime.Dev)
}

func TestParse_Plans(t *testing.T) {
	raw := minimalYAML + `
plans:
  - id: weekly
    name: Weekly
    amount: 29
    duration: monthly
    interviews: 1
`
	cfg, err := Parse([]byte(raw), false)
	require.NoError(t, err)
	require.Len(t, cfg.Plans, 1)
	assert.Equal(t, model.Plan{ID: "weekly", Name: "Weekly", Amount: 29, Duration: model.DurationMonthly, Interviews: 1}, cfg.Plans[0])
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		dev  bool
	}{
		{name: "missing database", raw: "redis: {url: x}\nauth: {jwt_secret: s}\npayment: {provider: noop}"},
		{name: "missing redis", raw: "database: {url: x}\nauth: {jwt_secret: s}\npayment: {provider: noop}", dev: true},
		{name: "missing jwt secret", raw: "database: {url: x}\nredis: {url: x}\npayment: {provider: noop}", dev: true},
		{name: "razorpay without keys", raw: "database: {url: x}\nredis: {url: x}\nauth: {jwt_secret: s}"},
		{name: "noop outside dev", raw: "database: {url: x}\nredis: {url: x}\nauth: {jwt_secret: s}\npayment: {provider: noop}"},
		{name: "unknown provider", raw: "database: {url: x}\nredis: {url: x}\nauth: {jwt_secret: s}\npayment: {provider: stripe}", dev: true},
		{name: "bad yaml", raw: "database: [", dev: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw), tc.dev)
			assert.Error(t, err)
		})
	}

	cfg, err := Parse([]byte("database: {url: x}\nredis: {url: x}\nauth: {jwt_secret: s}\npayment: {provider: noop}"), true)
	require.NoError(t, err)
	assert.True(t, cfg.Runtime.Dev)
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("PREPVIO_TEST_DB", "postgres://env/prepvio")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
database:
  url: ${PREPVIO_TEST_DB}
redis:
  url: redis://localhost:6379
auth:
  jwt_secret: secret
payment:
  key_id: rzp_test
  key_secret: shh
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path, false)

	require.NoError(t, err)
	assert.Equal(t, "postgres://env/prepvio", cfg.Database.URL)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"), false)
	assert.Error(t, err)
}
