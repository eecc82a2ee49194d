package data

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DataColumn describes one column of a result set.
type DataColumn struct {
	Name         string `json:"name"`
	DatabaseType string `json:"database_type,omitempty"`
	Nullable     *bool  `json:"nullable,omitempty"`
}

// DataTable is a fully materialized result set.
type DataTable struct {
	Columns   []DataColumn `json:"columns"`
	Rows      [][]any      `json:"rows"`
	Truncated bool         `json:"truncated,omitempty"`
}

// ColumnNames returns the result's column names in order.
func (t *DataTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ToMaps returns every row keyed by column name.
func (t *DataTable) ToMaps() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			m[c.Name] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// readTable drains rows into a DataTable, stopping after maxRows rows when
// maxRows is positive.
func readTable(rows *sqlx.Rows, maxRows int) (*DataTable, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	table := &DataTable{
		Columns: make([]DataColumn, len(types)),
		Rows:    [][]any{},
	}
	for i, ct := range types {
		table.Columns[i] = DataColumn{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
		if nullable, ok := ct.Nullable(); ok {
			table.Columns[i].Nullable = &nullable
		}
	}

	for rows.Next() {
		if maxRows > 0 && len(table.Rows) >= maxRows {
			table.Truncated = true
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(table.Rows)+1, err)
		}
		for i, v := range values {
			// Drivers hand text back as []byte; keep it printable.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return table, nil
}
