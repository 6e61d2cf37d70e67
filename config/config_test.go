package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "OVERDUE_SWEEP_SPEC", "OVERDUE_SWEEP_ENABLED", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "payplan.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "@hourly", cfg.SweepSpec)
	assert.True(t, cfg.SweepEnabled)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OVERDUE_SWEEP_SPEC", "*/5 * * * *")
	t.Setenv("OVERDUE_SWEEP_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "https://plans.example.com, https://admin.example.com,")

	cfg := Load()

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "*/5 * * * *", cfg.SweepSpec)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, []string{"https://plans.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")

	assert.Equal(t, 8080, Load().Port)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Port:         70000,
		DBPath:       "",
		LogLevel:     "verbose",
		SweepEnabled: true,
		SweepSpec:    "sometimes",
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 70000")
	assert.Contains(t, err.Error(), "database path cannot be empty")
	assert.Contains(t, err.Error(), `invalid log level "verbose"`)
	assert.Contains(t, err.Error(), `invalid overdue sweep spec "sometimes"`)
}

func TestValidate_SkipsSpecWhenSweepDisabled(t *testing.T) {
	cfg := &Config{Port: 8080, DBPath: "x.db", LogLevel: "info", SweepSpec: "sometimes"}

	assert.NoError(t, cfg.Validate())
}
