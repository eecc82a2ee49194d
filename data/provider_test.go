package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a MySQL-flavored provider whose schema discovery runs
// plain queries the tests set expectations for.
type fakeProvider struct {
	name        string
	procs       bool
	readOnlyDSN bool
}

func (p *fakeProvider) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}
func (p *fakeProvider) DriverName() string            { return "sqlmock" }
func (p *fakeProvider) SettingsKey() string           { return "fake" }
func (p *fakeProvider) SupportStoredProcedures() bool { return p.procs }
func (p *fakeProvider) Dialect() Dialect { return backtick }
func (p *fakeProvider) ConnectionString(s Settings) (string, error) {
	if err := MissingSettings(map[string]string{"database": s.Database}); err != nil {
		return "", err
	}
	return s.Database, nil
}
func (p *fakeProvider) DataSourceName(connStr string, readOnly bool) (string, error) {
	if connStr == "" {
		return "", fmt.Errorf("empty connection string")
	}
	p.readOnlyDSN = readOnly
	return connStr, nil
}
func (p *fakeProvider) DatabaseName(connStr string) string { return "shop" }
func (p *fakeProvider) ValidateQuery(query string) error {
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return fmt.Errorf("only SELECT")
	}
	return nil
}
func (p *fakeProvider) PopulateTables(ctx context.Context, q sqlx.QueryerContext, database string) ([]*Table, error) {
	rows, err := q.QueryxContext(ctx, "SELECT table_name, is_view FROM tables WHERE db = ?", database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.IsView); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
func (p *fakeProvider) PopulateStoredProcedures(ctx context.Context, q sqlx.QueryerContext, database string) ([]*StoredProcedure, error) {
	rows, err := q.QueryxContext(ctx, "SELECT routine_name FROM routines WHERE db = ?", database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*StoredProcedure
	for rows.Next() {
		var sp StoredProcedure
		if err := rows.Scan(&sp.Name); err != nil {
			return nil, err
		}
		out = append(out, &sp)
	}
	return out, rows.Err()
}
func (p *fakeProvider) ReadColumns(ctx context.Context, q sqlx.QueryerContext, database string, table *Table) ([]Column, error) {
	rows, err := q.QueryxContext(ctx, "SELECT name, pk, ai FROM columns WHERE db = ? AND tbl = ?", database, table.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.PrimaryKey, &c.AutoIncrement); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
func (p *fakeProvider) ReadParameters(ctx context.Context, q sqlx.QueryerContext, database string, proc *StoredProcedure) ([]Parameter, error) {
	var p1 Parameter
	err := q.QueryRowxContext(ctx, "SELECT name FROM params WHERE proc = ?", proc.Name).Scan(&p1.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p1.Position = 1
	return []Parameter{p1}, nil
}

// newMockDatabase returns a Database wired to a fresh sqlmock connection
// and already connected. Cleanup closes it and checks expectations.
func newMockDatabase(t *testing.T, p *fakeProvider, opts ...Option) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	dsn := "mock-" + t.Name()
	_, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)

	db := New(p, "shop", dsn, append([]Option{WithDriverName("sqlmock")}, opts...)...)
	require.NoError(t, db.Connect(context.Background()))
	t.Cleanup(func() {
		db.Close()
	})
	return db, mock
}

func TestRegisterAndLookup(t *testing.T) {
	p := &fakeProvider{name: "fake-registry"}
	Register(p)

	got, err := Lookup("fake-registry")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Contains(t, Providers(), "fake-registry")

	assert.Panics(t, func() { Register(p) }, "duplicate registration")
	assert.Panics(t, func() { Register(nil) })
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("no-such-engine")
	require.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Open("no-such-engine", "x", "x")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestMissingSettings(t *testing.T) {
	assert.NoError(t, MissingSettings(map[string]string{"host": "db"}))

	err := MissingSettings(map[string]string{"user": "", "host": "", "port": "3306"})
	require.Error(t, err)
	assert.Equal(t, "missing required settings: [host user]", err.Error())
}
