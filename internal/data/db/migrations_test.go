package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func openRawConn(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "formbot.db")
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMigrate_FreshDB(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	migrations, err := loadMigrations()
	require.NoError(t, err)

	version, err := schemaVersion(ctx, database.Conn())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	for _, table := range []string{"forms", "form_reminders", "channels", "deliveries"} {
		_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		require.NoError(t, err, "%s table should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	_, err := database.Conn().ExecContext(ctx, `
		INSERT INTO forms (id, title, deadline, channel, created_at)
		VALUES ('abc12345', 'Pesquisa', '2024-06-15', 'C1', 1)
	`)
	require.NoError(t, err)

	require.NoError(t, migrate(ctx, database.Conn()))

	var count int
	require.NoError(t, database.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM forms").Scan(&count))
	assert.Equal(t, 1, count, "rerunning must not touch existing rows")
}

func TestMigrate_ResumesFromStoredVersion(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NoError(t, applyMigration(ctx, conn, migrations[0]))

	require.NoError(t, migrate(ctx, conn))

	version, err := schemaVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	_, err = conn.ExecContext(ctx, "SELECT 1 FROM deliveries LIMIT 0")
	require.NoError(t, err)
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, "PRAGMA user_version = 99")
	require.NoError(t, err)

	err = migrate(ctx, conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than this binary")
}

func TestRemindersCascadeOnFormDelete(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO forms (id, title, deadline, channel, created_at) VALUES ('f1', 'T', '2024-06-15', 'C1', 1);
		INSERT INTO form_reminders (form_id, kind, sent_on) VALUES ('f1', 'one_day', '2024-06-14');
	`)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "DELETE FROM forms WHERE id = 'f1'")
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM form_reminders").Scan(&count))
	assert.Zero(t, count)
}

func TestLoadMigrations_Sequential(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.version)
		assert.NotEmpty(t, m.name)
		assert.NotEmpty(t, m.sql)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion int
		wantName    string
		wantErr     bool
	}{
		{"0001_forms.sql", 1, "forms", false},
		{"0002_deliveries.sql", 2, "deliveries", false},
		{"0100_big_version.sql", 100, "big_version", false},
		{"bad.sql", 0, "", true},
		{"0001_forms.txt", 0, "", true},
		{"0000_zero.sql", 0, "", true},
		{"-1_negative.sql", 0, "", true},
		{"abc_notnumber.sql", 0, "", true},
		{"0001_.sql", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
