package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-sql-browser/data"
)

var schema = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`,
	`CREATE TABLE tags (user_id INTEGER NOT NULL, tag TEXT NOT NULL, PRIMARY KEY (user_id, tag))`,
	`CREATE VIEW named_users AS SELECT name FROM users`,
	`INSERT INTO users (name, email) VALUES ('alice', 'alice@example.com'), ('bob', NULL), ('carol', 'carol@example.com')`,
	`INSERT INTO tags (user_id, tag) VALUES (1, 'admin')`,
}

// seedFile creates a populated database file and returns its path.
func seedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := data.Open("sqlite", "seed", path)
	require.NoError(t, err)
	require.NoError(t, db.Connect(context.Background()))
	for _, stmt := range schema {
		_, err := db.ExecuteNonQuery(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())
	return path
}

func openFile(t *testing.T, path string, opts ...data.Option) *data.Database {
	t.Helper()
	db, err := data.Open("sqlite", "shop", path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTablesAndColumns(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	name, err := db.CurrentDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"tags", "users", "named_users"}, names)
	assert.True(t, tables[2].IsView)
	assert.False(t, db.IsConnected(), "schema discovery releases the connection")

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	cols, err := users.Columns(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, data.Column{Name: "id", DataType: "INTEGER", PrimaryKey: true, AutoIncrement: true, Ordinal: 1}, cols[0])
	assert.False(t, cols[1].Nullable)
	assert.True(t, cols[2].Nullable)

	tags, err := db.Table(ctx, "tags")
	require.NoError(t, err)
	key, err := tags.PrimaryKey(ctx)
	require.NoError(t, err)
	require.Len(t, key, 2)
	assert.False(t, key[0].AutoIncrement, "composite keys are not rowid aliases")

	_, err = db.Table(ctx, "missing")
	assert.ErrorIs(t, err, data.ErrTableNotFound)

	_, err = db.StoredProcedures(ctx)
	assert.ErrorIs(t, err, data.ErrNotSupported)
}

func TestAdapterFillWithFilter(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, users, &data.TableFilter{
		Columns:    []string{"id", "name"},
		Conditions: []data.Condition{{Column: "email", Operator: data.OpIsNotNull}},
		OrderBy:    []data.Order{{Column: "id", Descending: true}},
	})
	require.NoError(t, err)

	result, err := adapter.Fill(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.ColumnNames())
	assert.Equal(t, [][]any{{int64(3), "carol"}, {int64(1), "alice"}}, result.Rows)
}

func TestAdapterUpdate(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, users, nil)
	require.NoError(t, err)
	require.NotNil(t, adapter.InsertCommand)
	require.NotNil(t, adapter.UpdateCommand)
	require.NotNil(t, adapter.DeleteCommand)

	n, err := adapter.Update(ctx,
		data.RowChange{State: data.Added, Current: map[string]any{"name": "dave", "email": "dave@example.com"}},
		data.RowChange{
			State:    data.Modified,
			Original: map[string]any{"id": int64(2)},
			Current:  map[string]any{"name": "bobby", "email": "bob@example.com"},
		},
		data.RowChange{State: data.Deleted, Original: map[string]any{"id": int64(3)}},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	result, err := db.ExecuteTable(ctx, "SELECT id, name, email FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int64(1), "alice", "alice@example.com"},
		{int64(2), "bobby", "bob@example.com"},
		{int64(4), "dave", "dave@example.com"},
	}, result.Rows)
}

func TestAdapterUpdate_ConcurrencyRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, users, nil)
	require.NoError(t, err)

	_, err = adapter.Update(ctx,
		data.RowChange{State: data.Added, Current: map[string]any{"name": "eve"}},
		data.RowChange{State: data.Deleted, Original: map[string]any{"id": int64(99)}},
	)
	assert.True(t, errors.Is(err, data.ErrConcurrency), "got %v", err)

	result, err := db.ExecuteTable(ctx, "SELECT count(*) AS n FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Rows[0][0])
}

func TestAdapterOnView(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	view, err := db.Table(ctx, "named_users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, view, nil)
	require.NoError(t, err)
	assert.Nil(t, adapter.UpdateCommand)
	assert.Nil(t, adapter.DeleteCommand)

	_, err = adapter.Update(ctx, data.RowChange{State: data.Deleted, Original: map[string]any{"name": "bob"}})
	assert.ErrorIs(t, err, data.ErrNoCommand)
}

func TestReadOnlyDatabase(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t), data.WithReadOnly(true), data.WithMaxRows(2))

	result, err := db.ExecuteTable(ctx, "SELECT name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)

	_, err = db.ExecuteTable(ctx, "DELETE FROM users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query rejected")

	require.NoError(t, db.Connect(ctx))
	_, err = db.ExecuteNonQuery(ctx, "DELETE FROM users")
	assert.ErrorIs(t, err, data.ErrReadOnly)

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, users, nil)
	require.NoError(t, err)
	assert.Nil(t, adapter.InsertCommand)

	assert.ErrorIs(t, db.ChangeConnectionString("other.db"), data.ErrConnected)
	require.NoError(t, db.Disconnect())
	assert.NoError(t, db.ChangeConnectionString("other.db"))
}

func TestReadOnlyDatabase_EngineRefusesWrites(t *testing.T) {
	ctx := context.Background()
	path := seedFile(t)
	db := openFile(t, path, data.WithReadOnly(true))

	require.NoError(t, db.Connect(ctx))
	defer db.Disconnect()

	tx, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "DELETE FROM users")
	assert.Error(t, err, "a write on the raw connection must fail")
	require.NoError(t, tx.Rollback())

	stmt, err := db.CreateCommand(ctx, "UPDATE users SET name = 'x'")
	if err == nil {
		_, err = stmt.ExecContext(ctx)
		stmt.Close()
	}
	assert.Error(t, err)

	writable := openFile(t, path)
	result, err := writable.ExecuteTable(ctx, "SELECT count(*) FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Rows[0][0])
}

func TestAdapterFillWithOffsetOnly(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	users, err := db.Table(ctx, "users")
	require.NoError(t, err)
	adapter, err := db.CreateAdapter(ctx, users, &data.TableFilter{
		Columns: []string{"name"},
		OrderBy: []data.Order{{Column: "id"}},
		Offset:  2,
	})
	require.NoError(t, err)

	result, err := adapter.Fill(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"carol"}}, result.Rows)
}

func TestExecuteNonQueryTx(t *testing.T) {
	ctx := context.Background()
	db := openFile(t, seedFile(t))

	_, err := db.ExecuteNonQuery(ctx, "DELETE FROM tags")
	assert.ErrorIs(t, err, data.ErrNotConnected)

	n, err := db.ExecuteNonQueryTx(ctx, nil, "DELETE FROM tags WHERE tag = ?", "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, db.IsConnected())
}
