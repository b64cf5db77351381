package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Import.RowTolerance)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxUploadBytes)
	assert.Equal(t, "fuzzy", cfg.Subscriptions.DuplicatePolicy)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.Retention)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("IMPORT_ROW_TOLERANCE", "5")
	t.Setenv("DUPLICATE_POLICY", "Strict")
	t.Setenv("DISPLAY_CURRENCY", "hkd")
	t.Setenv("STORAGE_RETENTION", "48h")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Import.RowTolerance)
	assert.Equal(t, "strict", cfg.Subscriptions.DuplicatePolicy)
	assert.Equal(t, "HKD", cfg.Subscriptions.DisplayCurrency)
	assert.Equal(t, 48*time.Hour, cfg.Storage.Retention)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown duplicate policy", "DUPLICATE_POLICY", "exact"},
		{"negative tolerance", "IMPORT_ROW_TOLERANCE", "-1"},
		{"zero upload size", "IMPORT_MAX_UPLOAD_BYTES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", db.DSN())
}
