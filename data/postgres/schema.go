package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shakram02/go-sql-browser/data"
)

const (
	tablesQuery = `SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_catalog = $1 AND table_schema = $2
		ORDER BY table_name`

	columnsQuery = `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default, c.ordinal_position, c.is_identity,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
				  ON kcu.constraint_name = tc.constraint_name
				 AND kcu.table_schema = tc.table_schema
				 AND kcu.table_name = tc.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema
				  AND tc.table_name = c.table_name
				  AND kcu.column_name = c.column_name
			) AS is_primary
		FROM information_schema.columns c
		WHERE c.table_catalog = $1 AND c.table_schema = $2 AND c.table_name = $3
		ORDER BY c.ordinal_position`

	routinesQuery = `SELECT routine_name, specific_name, routine_type, routine_definition
		FROM information_schema.routines
		WHERE routine_catalog = $1 AND routine_schema = $2
		ORDER BY routine_name`

	parametersQuery = `SELECT parameter_name, data_type, parameter_mode, ordinal_position
		FROM information_schema.parameters
		WHERE specific_catalog = $1 AND specific_schema = $2 AND specific_name = $3
		ORDER BY ordinal_position`
)

func (Provider) PopulateTables(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.Table, error) {
	rows, err := q.QueryxContext(ctx, tablesQuery, database, Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables, views []*data.Table
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		if tableType == "VIEW" {
			views = append(views, &data.Table{Name: name, Schema: Schema, IsView: true})
		} else {
			tables = append(tables, &data.Table{Name: name, Schema: Schema})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return append(tables, views...), nil
}

func (Provider) ReadColumns(ctx context.Context, q sqlx.QueryerContext, database string, table *data.Table) ([]data.Column, error) {
	schema := table.Schema
	if schema == "" {
		schema = Schema
	}
	rows, err := q.QueryxContext(ctx, columnsQuery, database, schema, table.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []data.Column
	for rows.Next() {
		var col data.Column
		var isNullable string
		var colDefault, isIdentity sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &colDefault, &col.Ordinal, &isIdentity, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = isNullable == "YES"
		// identity columns have no column_default; serial columns default to nextval()
		col.AutoIncrement = isIdentity.String == "YES"
		if colDefault.Valid {
			col.Default = &colDefault.String
			col.AutoIncrement = col.AutoIncrement || strings.HasPrefix(colDefault.String, "nextval(")
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (Provider) PopulateStoredProcedures(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.StoredProcedure, error) {
	rows, err := q.QueryxContext(ctx, routinesQuery, database, Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procs []*data.StoredProcedure
	for rows.Next() {
		var p data.StoredProcedure
		var routineType, definition sql.NullString
		if err := rows.Scan(&p.Name, &p.SpecificName, &routineType, &definition); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		p.Schema = Schema
		p.Type = routineType.String
		p.Definition = definition.String
		procs = append(procs, &p)
	}
	return procs, rows.Err()
}

func (Provider) ReadParameters(ctx context.Context, q sqlx.QueryerContext, database string, proc *data.StoredProcedure) ([]data.Parameter, error) {
	rows, err := q.QueryxContext(ctx, parametersQuery, database, Schema, proc.SpecificName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []data.Parameter
	for rows.Next() {
		var p data.Parameter
		var name, mode sql.NullString
		if err := rows.Scan(&name, &p.DataType, &mode, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.Name = name.String
		p.Mode = mode.String
		params = append(params, p)
	}
	return params, rows.Err()
}
