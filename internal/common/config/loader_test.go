package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: returns-notifier
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    port: 5432
    database: returns
    user: ${TEST_DB_USER}
  redis:
    address: localhost:6379
workers:
  goods-return-notification:
    enabled: true
    timeout: 15000
notifications:
  from_email: noreply@example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_DB_USER", "returns_app")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "returns_app", cfg.Database.Postgres.User)
	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "noreply@example.com", cfg.Notifications.FromEmail)

	// defaults
	assert.Equal(t, "tsGoodsReturn", cfg.Notifications.PermitEvent)
	assert.Equal(t, "en", cfg.Notifications.DefaultLanguage)
	assert.Equal(t, "ses", cfg.Integrations.Email.Provider)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 60, cfg.Notifications.SMS.RatePerMinute)
	assert.Equal(t, 8080, cfg.Observability.MetricsPort)

	wcfg := GetWorkerConfig(cfg, "goods-return-notification")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 15000, wcfg.Timeout)
	assert.Equal(t, 5, wcfg.MaxJobsActive)
	assert.Equal(t, 3, wcfg.MaxRetries)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing broker",
			yaml:    "database:\n  postgres:\n    host: h\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "missing redis",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "smtp without host",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
integrations:
  email: {provider: smtp}
`,
			wantErr: "integrations.email.smtp.host is required",
		},
		{
			name: "unknown provider",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
integrations:
  email: {provider: pigeon}
`,
			wantErr: `"pigeon" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{}
	wcfg := GetWorkerConfig(cfg, "unknown")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 30000, wcfg.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "returns", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=returns sslmode=disable", p.GetDSN())
}

func TestLoadFromFile_UnsetPlaceholderFallsBack(t *testing.T) {
	t.Setenv("TEST_DB_USER", "returns_app")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML+`
integrations:
  aws:
    region: ${UNSET_REGION_FOR_TEST}
    endpoint: ${UNSET_ENDPOINT_FOR_TEST}
`))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Integrations.AWS.Region)
	assert.Empty(t, cfg.Integrations.AWS.Endpoint)
}
