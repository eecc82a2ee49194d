package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Column describes one column of a table or view.
type Column struct {
	Name          string  `json:"column_name"`
	DataType      string  `json:"data_type"`
	Nullable      bool    `json:"is_nullable"`
	Default       *string `json:"column_default,omitempty"`
	PrimaryKey    bool    `json:"primary_key,omitempty"`
	AutoIncrement bool    `json:"auto_increment,omitempty"`
	Ordinal       int     `json:"ordinal_position"`
}

// Table is a table or view of a Database. Providers create tables with
// Name, Schema and IsView set; the Database binds them to itself.
type Table struct {
	Name   string
	Schema string
	IsView bool

	db *Database

	mu      sync.Mutex
	columns []Column
}

// Database returns the database the table belongs to.
func (t *Table) Database() *Database { return t.db }

// QuotedName returns the table name quoted for the owning database.
func (t *Table) QuotedName() string {
	return t.dialect().QuoteQualified(t.Schema, t.Name)
}

func (t *Table) dialect() Dialect {
	if t.db == nil {
		return Dialect{}
	}
	return t.db.Dialect()
}

// Columns returns the table's columns in ordinal order. They are read
// once and cached until the database is refreshed.
func (t *Table) Columns(ctx context.Context) ([]Column, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.columns != nil {
		return t.columns, nil
	}
	if t.db == nil {
		return nil, fmt.Errorf("table %s is not bound to a database", t.Name)
	}
	cols, err := t.db.readColumns(ctx, t)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []Column{}
	}
	t.columns = cols
	return cols, nil
}

// PrimaryKey returns the primary key columns in ordinal order.
func (t *Table) PrimaryKey(ctx context.Context) ([]Column, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	var key []Column
	for _, c := range cols {
		if c.PrimaryKey {
			key = append(key, c)
		}
	}
	return key, nil
}

// Operator is a comparison used by a filter Condition.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
	OpIsNull       Operator = "IS NULL"
	OpIsNotNull    Operator = "IS NOT NULL"
)

func (op Operator) unary() bool { return op == OpIsNull || op == OpIsNotNull }

func (op Operator) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpLike, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Condition compares one column with a value. Value is ignored for the
// IS NULL operators.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
}

// Order sorts by one column.
type Order struct {
	Column     string
	Descending bool
}

// TableFilter narrows what a table's base select returns. The zero value
// selects every column and row.
type TableFilter struct {
	Columns    []string
	Where      string
	Conditions []Condition
	OrderBy    []Order
	Limit      int
	Offset     int
}

// BaseSelectCommandText builds the SELECT used to browse the table and
// returns it together with its bound arguments, already in the dialect's
// placeholder style. Where is copied verbatim and must not contain bind
// markers. A nil filter selects everything.
func (t *Table) BaseSelectCommandText(filter *TableFilter) (string, []any, error) {
	d := t.dialect()
	marks := &placeholders{d: d}
	if filter == nil {
		filter = &TableFilter{}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(filter.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range filter.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Quote(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(t.QuotedName())

	var where []string
	var args []any
	if w := strings.TrimSpace(filter.Where); w != "" {
		where = append(where, "("+w+")")
	}
	for _, c := range filter.Conditions {
		op := Operator(strings.ToUpper(strings.TrimSpace(string(c.Operator))))
		if !op.valid() {
			return "", nil, fmt.Errorf("unsupported filter operator %q", c.Operator)
		}
		if op.unary() {
			where = append(where, d.Quote(c.Column)+" "+string(op))
			continue
		}
		where = append(where, d.Quote(c.Column)+" "+string(op)+" "+marks.next())
		args = append(args, c.Value)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if len(filter.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range filter.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Quote(o.Column))
			if o.Descending {
				b.WriteString(" DESC")
			}
		}
	}

	switch {
	case filter.Limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(filter.Limit))
	case filter.Offset > 0 && d.UnboundedLimit != "":
		b.WriteString(" LIMIT ")
		b.WriteString(d.UnboundedLimit)
	}
	if filter.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(filter.Offset))
	}

	return b.String(), args, nil
}
