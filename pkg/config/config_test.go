package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so no .env file is picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 4.0, cfg.Academic.PassingGrade)
	assert.Equal(t, 75.0, cfg.Academic.MinAttendancePercent)
	assert.Equal(t, 5, cfg.Dashboard.RecentEnrollmentsLimit)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("DASHBOARD_CACHE_TTL", "not-a-duration")
	t.Setenv("PASSING_GRADE", "4.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, 4.5, cfg.Academic.PassingGrade)
}

func TestLoadRejectsInvertedScoreScale(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MIN_SCORE", "7")
	t.Setenv("MAX_SCORE", "1")

	_, err := Load()
	require.Error(t, err)
}
