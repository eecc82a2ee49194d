package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shakram02/go-sql-browser/data"
)

const tablesQuery = `SELECT name, type FROM sqlite_master
	WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

// PopulateTables lists tables and views from sqlite_master. database is
// ignored: a connection sees one main database.
func (Provider) PopulateTables(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.Table, error) {
	rows, err := q.QueryxContext(ctx, tablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables, views []*data.Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		if kind == "view" {
			views = append(views, &data.Table{Name: name, IsView: true})
		} else {
			tables = append(tables, &data.Table{Name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return append(tables, views...), nil
}

// ReadColumns uses PRAGMA table_info. A lone INTEGER PRIMARY KEY is an
// alias of the rowid and is reported as auto-increment.
func (Provider) ReadColumns(ctx context.Context, q sqlx.QueryerContext, database string, table *data.Table) ([]data.Column, error) {
	// PRAGMA arguments cannot be bound, so the name is embedded as a literal.
	query := fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table.Name, "'", "''"))
	rows, err := q.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []data.Column
	keys := 0
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := data.Column{
			Name:       name,
			DataType:   colType,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
			Ordinal:    cid + 1,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		if pk > 0 {
			keys++
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if keys == 1 && !table.IsView {
		for i := range cols {
			if cols[i].PrimaryKey && strings.EqualFold(cols[i].DataType, "INTEGER") {
				cols[i].AutoIncrement = true
			}
		}
	}
	return cols, nil
}

func (Provider) PopulateStoredProcedures(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.StoredProcedure, error) {
	return nil, data.ErrNotSupported
}

func (Provider) ReadParameters(ctx context.Context, q sqlx.QueryerContext, database string, proc *data.StoredProcedure) ([]data.Parameter, error) {
	return nil, data.ErrNotSupported
}
