package mysql

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
		WHERE table_schema = ?
		ORDER BY table_name`

	columnsQuery = `SELECT column_name, column_type, is_nullable, column_key, column_default, extra, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`

	routinesQuery = `SELECT routine_name, routine_type, routine_definition, routine_comment
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name`

	parametersQuery = `SELECT parameter_name, dtd_identifier, parameter_mode, ordinal_position
		FROM information_schema.parameters
		WHERE specific_schema = ? AND specific_name = ? AND ordinal_position > 0
		ORDER BY ordinal_position`
)

// PopulateTables lists the base tables and views of database.
func (Provider) PopulateTables(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.Table, error) {
	rows, err := q.QueryxContext(ctx, tablesQuery, database)
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
		if strings.HasSuffix(strings.ToUpper(tableType), "VIEW") {
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

func (Provider) ReadColumns(ctx context.Context, q sqlx.QueryerContext, database string, table *data.Table) ([]data.Column, error) {
	rows, err := q.QueryxContext(ctx, columnsQuery, database, table.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []data.Column
	for rows.Next() {
		var col data.Column
		var isNullable, colKey string
		var colDefault, extra sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &colKey, &colDefault, &extra, &col.Ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = isNullable == "YES"
		col.PrimaryKey = colKey == "PRI"
		col.AutoIncrement = strings.Contains(strings.ToLower(extra.String), "auto_increment")
		if colDefault.Valid {
			col.Default = &colDefault.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// PopulateStoredProcedures lists procedures and functions of database.
func (Provider) PopulateStoredProcedures(ctx context.Context, q sqlx.QueryerContext, database string) ([]*data.StoredProcedure, error) {
	rows, err := q.QueryxContext(ctx, routinesQuery, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procs []*data.StoredProcedure
	for rows.Next() {
		var name, routineType string
		var definition, comment sql.NullString
		if err := rows.Scan(&name, &routineType, &definition, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		procs = append(procs, &data.StoredProcedure{
			Name:         name,
			SpecificName: name,
			Type:         routineType,
			Definition:   definition.String,
			Comment:      comment.String,
		})
	}
	return procs, rows.Err()
}

func (Provider) ReadParameters(ctx context.Context, q sqlx.QueryerContext, database string, proc *data.StoredProcedure) ([]data.Parameter, error) {
	rows, err := q.QueryxContext(ctx, parametersQuery, database, proc.SpecificName)
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
