package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CODEREVIEW_SESSION_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "GEMA Code Review", cfg.AppName)
	require.Equal(t, ":3000", cfg.HTTPAddress())
	require.Equal(t, "http://localhost:8000", cfg.ReviewServiceURL)
	require.Zero(t, cfg.RequestTimeout)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, int64(512*1024), cfg.MaxUploadBytes())
	require.Equal(t, time.Minute, cfg.SubmitRateWindow)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CODEREVIEW_SESSION_SECRET", "secret")
	t.Setenv("CODEREVIEW_REVIEW_SERVICE_URL", "http://review:8000/")
	t.Setenv("CODEREVIEW_REVIEW_REQUEST_TIMEOUT", "45s")
	t.Setenv("CODEREVIEW_APP_PORT", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://review:8000", cfg.ReviewServiceURL)
	require.Equal(t, 45*time.Second, cfg.RequestTimeout)
	require.Equal(t, ":9090", cfg.HTTPAddress())
}

func TestFromViperRequiresSecret(t *testing.T) {
	v := viper.New()
	v.Set("review.service_url", "http://localhost:8000")

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestFromViperRejectsBadDuration(t *testing.T) {
	v := viper.New()
	v.Set("session.secret", "secret")
	v.Set("review.service_url", "http://localhost:8000")
	v.Set("review.request_timeout", "soon")

	_, err := fromViper(v)
	require.ErrorContains(t, err, "review.request_timeout")
}
