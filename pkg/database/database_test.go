package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func openSQLite(t *testing.T) DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestJSONB_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    map[string]string
		wantErr bool
	}{
		{name: "bytes", src: []byte(`{"a":"1"}`), want: map[string]string{"a": "1"}},
		{name: "string", src: `{"b":"2"}`, want: map[string]string{"b": "2"}},
		{name: "nil", src: nil},
		{name: "unsupported", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONB[map[string]string]
			err := j.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, j.GetValue())
		})
	}
}

func TestJSONB_Value(t *testing.T) {
	v, err := NewJSONB([]string{"x", "y"}).Value()
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, v)
}

func TestFlavor(t *testing.T) {
	assert.Equal(t, sqlbuilder.SQLite, Flavor(DriverSQLite))
	assert.Equal(t, sqlbuilder.PostgreSQL, Flavor(DriverPostgres))
	assert.True(t, SupportsReturning(DriverPostgres))
	assert.False(t, SupportsReturning(DriverSQLite))

	ib := NewInsertBuilder(DriverPostgres)
	ib.InsertInto("items").Cols("identifier").Values("1_1")
	query, args := ib.Build()
	assert.Equal(t, "INSERT INTO items (identifier) VALUES ($1)", query)
	assert.Equal(t, []any{"1_1"}, args)
}

func TestGetTx_ReusesContextTransaction(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t (v TEXT)")
	require.NoError(t, err)

	txCtx, outer, err := db.GetTx(ctx, nil)
	require.NoError(t, err)

	_, inner, err := db.GetTx(txCtx, nil)
	require.NoError(t, err)

	_, err = inner.ExecContext(txCtx, inner.Rebind("INSERT INTO t (v) VALUES (?)"), "a")
	require.NoError(t, err)

	// the nested commit must not end the outer transaction
	require.NoError(t, inner.Commit(txCtx))
	assert.True(t, outer.IsOpen())

	require.NoError(t, outer.Rollback(txCtx))
	assert.False(t, outer.IsOpen())
	require.NoError(t, outer.Rollback(txCtx))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, 0, count)
}

func TestMigrationService_SQLite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.up.sql"), []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.down.sql"), []byte("DROP TABLE widgets;"), 0o600))

	db := openSQLite(t)
	svc := NewMigrationService(testLogger(), &MigrationConfig{MigrationFolderPath: dir})

	require.NoError(t, svc.Migrate(db))
	// second run has nothing to apply
	require.NoError(t, svc.Migrate(db))

	_, err := db.ExecContext(context.Background(), "INSERT INTO widgets (id) VALUES (1)")
	assert.NoError(t, err)
}

func TestMigrationService_MissingFolder(t *testing.T) {
	db := openSQLite(t)
	svc := NewMigrationService(testLogger(), &MigrationConfig{MigrationFolderPath: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, svc.Migrate(db))
}

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_a.up.sql", "000003_c.up.sql", "000002_b.up.sql", "000003_c.down.sql", "README"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	v, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = getLatestVersion(t.TempDir())
	assert.Error(t, err)
}
