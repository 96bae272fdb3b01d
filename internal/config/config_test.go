package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("PGDATABASE", "truekea_test")
	t.Setenv("DB_MAX_CONNS", "15")
	t.Setenv("DB_MIN_CONNS", "3")
	t.Setenv("SWEEP_INTERVAL", "2m")

	cfg := LoadConfig()

	require.Equal(t, "secreto", cfg.JWTSecret)
	require.Contains(t, cfg.DatabaseURL, "truekea_test")
	require.Equal(t, int32(15), cfg.DatabaseConfig.MaxConns)
	require.Equal(t, int32(3), cfg.DatabaseConfig.MinConns)
	require.Equal(t, 2*time.Minute, cfg.SweepInterval)
}

func TestLoadConfigPoolPorDefecto(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("DB_MAX_CONNS", "no-es-numero")
	t.Setenv("DB_MIN_CONNS", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := LoadConfig()

	// Непарсимые значения откатываются к дефолтам пула
	require.Equal(t, int32(10), cfg.DatabaseConfig.MaxConns)
	require.Equal(t, int32(2), cfg.DatabaseConfig.MinConns)
	require.Equal(t, time.Duration(0), cfg.SweepInterval)
}
