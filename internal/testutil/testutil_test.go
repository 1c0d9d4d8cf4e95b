package testutil

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/migrate"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("local compose defaults", func(t *testing.T) {
		for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(key, "")
		}

		assert.Equal(t, TestDBConfig{
			Host:     "localhost",
			Port:     "55432",
			User:     "jobrelay",
			Password: "jobrelay",
			DBName:   "jobrelay",
		}, DefaultTestDBConfig())
	})

	t.Run("CI overrides", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		t.Setenv("TEST_DB_NAME", "jobrelay_ci")

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
		assert.Equal(t, "jobrelay_ci", cfg.DBName)
	})
}

func TestBuildBaseDSN(t *testing.T) {
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "relay", Password: "pw", DBName: "jobrelay"}

	t.Setenv("DB_SSL_MODE", "")
	assert.Equal(t, "postgres://relay:pw@db:5432/jobrelay?sslmode=disable", buildBaseDSN(cfg))

	t.Setenv("DB_SSL_MODE", "require")
	assert.Equal(t, "postgres://relay:pw@db:5432/jobrelay?sslmode=require", buildBaseDSN(cfg))
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "y"} {
		t.Setenv("TEST_REQUIRE_INFRA", v)
		assert.True(t, envBool("TEST_REQUIRE_INFRA"), v)
		assert.True(t, requireDB(), v)
		assert.True(t, requireRedis(), v)
	}
	for _, v := range []string{"", "0", "false", "no"} {
		t.Setenv("TEST_REQUIRE_INFRA", v)
		assert.False(t, envBool("TEST_REQUIRE_INFRA"), v)
	}
}

func TestGenerateSchemaName(t *testing.T) {
	name := generateSchemaName()
	assert.Regexp(t, regexp.MustCompile(`^t_[0-9a-f]{8}$`), name)
	assert.NotEqual(t, name, generateSchemaName())
}

func countCompletions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT count(*) FROM completions").Scan(&n))
	return n
}

func TestWithAutoDB_MigratesAndEmptiesCompletions(t *testing.T) {
	WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()

		status, err := migrate.Status(ctx, db)
		require.NoError(t, err)
		require.NotEmpty(t, status)
		for _, m := range status {
			assert.True(t, m.Applied, m.Version)
		}
		assert.Equal(t, "0001_completions", status[0].Version)

		assert.Zero(t, countCompletions(t, db))

		_, err = db.ExecContext(ctx,
			`INSERT INTO completions (completion_id, model, user_message) VALUES ($1, $2, $3)`,
			"cmp-cleanup", "gpt-4o-mini", "hello",
		)
		require.NoError(t, err)
		assert.Equal(t, 1, countCompletions(t, db))

		CleanupTestDB(t, db)
		assert.Zero(t, countCompletions(t, db))
	})
}
