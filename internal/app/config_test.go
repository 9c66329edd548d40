package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, EngineFPDF, cfg.PDFEngine)
	assert.Equal(t, 7, cfg.InvoiceDueDays)
	assert.Equal(t, 7*24*time.Hour, cfg.DueAfter())
	assert.Equal(t, time.Duration(0), cfg.AppWriteTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigNormalisesChoices(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("PDF_ENGINE", "GOTENBERG")
	t.Setenv("APP_ENV", "production")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, EngineGotenberg, cfg.PDFEngine)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing csrf secret", env: map[string]string{"CSRF_SECRET": ""}},
		{name: "unknown store", env: map[string]string{"STORE_BACKEND": "mongo"}},
		{name: "unknown engine", env: map[string]string{"PDF_ENGINE": "latex"}},
		{name: "non-positive due days", env: map[string]string{"INVOICE_DUE_DAYS": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
