package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DB_DRIVER", "DB_PATH", "CLASSIFIER_MODEL", "MAX_UPLOAD_MB", "CORS_ORIGINS", "CLASSIFIER_TIMEOUT_SEC"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "ecocycle.db", cfg.DBPath)
	assert.Equal(t, "llava-v1.5-7b-4096-preview", cfg.ClassifierModel)
	assert.Equal(t, int64(8<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IS_PROD", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int64(-1001), cfg.TelegramChatID)
}

func TestValidate(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", DBPath: "x.db"}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "secret"
	require.NoError(t, cfg.Validate())

	cfg.DBDriver = "mysql"
	require.Error(t, cfg.Validate())

	cfg.DBHost, cfg.DBUser, cfg.DBName = "db", "eco", "ecocycle"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "eco:@tcp(db:3306)/ecocycle?parseTime=true", (&Config{DBUser: "eco", DBHost: "db", DBPort: "3306", DBName: "ecocycle"}).MySQLDSN())

	cfg.DBDriver = "postgres"
	require.Error(t, cfg.Validate())
}
