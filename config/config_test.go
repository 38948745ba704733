package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CHANGE_POLL_INTERVAL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 500*time.Millisecond, cfg.ChangePollInterval)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CHANGE_POLL_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRequiresSecretInRelease(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CHANGE_POLL_INTERVAL", "")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
