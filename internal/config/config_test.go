package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DRAW_SEED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Nil(t, cfg.DrawSeed)
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "postgres with url",
			env:  map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/tournaments"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
				assert.Equal(t, "postgres://localhost/tournaments", cfg.DatabaseURL)
			},
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"DATABASE_DRIVER": "postgres"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"DATABASE_DRIVER": "mysql"},
			wantErr: true,
		},
		{
			name:    "port out of range",
			env:     map[string]string{"SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "port not a number",
			env:     map[string]string{"SERVER_PORT": "http"},
			wantErr: true,
		},
		{
			name: "debug logging and draw seed",
			env:  map[string]string{"LOG_LEVEL": "debug", "DRAW_SEED": "42"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
				require.NotNil(t, cfg.DrawSeed)
				assert.Equal(t, uint64(42), *cfg.DrawSeed)
			},
		},
		{
			name:    "bad draw seed",
			env:     map[string]string{"DRAW_SEED": "-1"},
			wantErr: true,
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOG_LEVEL": "loud"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range []string{"DATABASE_DRIVER", "DATABASE_URL", "SERVER_PORT", "LOG_LEVEL", "DRAW_SEED"} {
				t.Setenv(key, tc.env[key])
			}

			cfg, err := Load()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}
