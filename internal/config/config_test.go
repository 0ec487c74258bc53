package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INTAKE_SESSION_TTL", "")
	t.Setenv("CLASSIFIER_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Intake.SessionTTL)
	assert.Equal(t, 6, cfg.Intake.MinSecretLength)
	assert.Equal(t, 20, cfg.Intake.MinDescriptionLength)
	assert.Equal(t, "memory", cfg.Intake.SessionBackend)
	assert.Equal(t, "keyword", cfg.Classifier.Provider)
	assert.Equal(t, 5*time.Second, cfg.Classifier.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INTAKE_SESSION_TTL", "15m")
	t.Setenv("INTAKE_SESSION_BACKEND", "REDIS")
	t.Setenv("CLASSIFIER_TIMEOUT", "750ms")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Intake.SessionTTL)
	assert.Equal(t, "redis", cfg.Intake.SessionBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Classifier.Timeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("INTAKE_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Intake.SweepInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	t.Setenv("CLASSIFIER_PROVIDER", "keyword")
	t.Setenv("INTAKE_MIN_SECRET_LENGTH", "100")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTAKE_MIN_SECRET_LENGTH")
}
