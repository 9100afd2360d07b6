package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresSecretAndDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/library")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/library")
	t.Setenv("JWT_SECRET", "sekrit")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 15*24*time.Hour, cfg.TokenTTL, "tokens default to a 15 day lifetime")
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestCoerceDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db", coerceDatabaseURL("postgresql://u@h/db"))
	assert.Equal(t, "postgres://u@h/db", coerceDatabaseURL(" postgres://u@h/db "))
	assert.Empty(t, coerceDatabaseURL("mysql://u@h/db"))
}

func TestResolveDatabaseURL_FromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("PGURL", "")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "library")
	t.Setenv("PGPASSWORD", "pw")
	t.Setenv("PGDATABASE", "library")
	t.Setenv("PGPORT", "6432")
	t.Setenv("PGSSLMODE", "disable")

	dsn := resolveDatabaseURL()
	assert.Equal(t, "postgres://library:pw@db.internal:6432/library?sslmode=disable", dsn)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Equal(t, []string{"*"}, splitCSV(" , "))
}
