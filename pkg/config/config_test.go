package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 37.5, cfg.Fees.PerCredit)
	assert.Equal(t, 2250.0, cfg.Fees.GovernmentGrant)
	assert.Equal(t, 14*24*time.Hour, cfg.Registration.Window)
	assert.Equal(t, "0 0 0 1 1,6 *", cfg.Cron.DeactivateSchedule)
	assert.Equal(t, 30*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FEE_PER_CREDIT", "40")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("JOBS_RETRY_DELAY", "not-a-duration")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, 40.0, cfg.Fees.PerCredit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Jobs.RetryDelay)
}

func TestValidateProductionSecrets(t *testing.T) {
	cfg := defaults(t)
	cfg.Env = EnvProduction

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SYLLABUS_SIGNED_URL_SECRET")

	cfg.JWT.Secret = "s3cr3t"
	cfg.Syllabus.SignedURLSecret = "another"
	assert.NoError(t, cfg.Validate())
}

func TestValidateStorage(t *testing.T) {
	cfg := defaults(t)
	cfg.Storage.Driver = StorageDriverS3
	assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")

	cfg.Storage.S3.Bucket = "syllabi"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "ftp"
	assert.ErrorContains(t, cfg.Validate(), `unknown STORAGE_DRIVER "ftp"`)
}
