package data

import (
	"fmt"
	"strings"
)

// RowVersion selects which image of a row a command parameter reads.
type RowVersion int

const (
	Current RowVersion = iota
	Original
)

// CommandParam binds one placeholder of a Command to a column value.
type CommandParam struct {
	Column  string
	Version RowVersion
}

// Command is a generated statement and the row values it binds, in
// placeholder order.
type Command struct {
	Text   string
	Params []CommandParam
}

// Args extracts the command's arguments from the original and current
// images of a row. Missing columns bind as NULL.
func (c *Command) Args(original, current map[string]any) []any {
	args := make([]any, len(c.Params))
	for i, p := range c.Params {
		if p.Version == Original {
			args[i] = original[p.Column]
		} else {
			args[i] = current[p.Column]
		}
	}
	return args
}

// CommandBuilder synthesizes INSERT, UPDATE and DELETE statements for a
// table from its column shape.
type CommandBuilder struct {
	table   *Table
	columns []Column
}

// NewCommandBuilder returns a builder for table with the given columns.
func NewCommandBuilder(table *Table, columns []Column) *CommandBuilder {
	return &CommandBuilder{table: table, columns: columns}
}

func (b *CommandBuilder) writable() []Column {
	var cols []Column
	for _, c := range b.columns {
		if !c.AutoIncrement {
			cols = append(cols, c)
		}
	}
	return cols
}

func (b *CommandBuilder) key() []Column {
	var cols []Column
	for _, c := range b.columns {
		if c.PrimaryKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// named returns the columns called names, in table order.
func (b *CommandBuilder) named(names []string) ([]Column, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var cols []Column
	for _, c := range b.columns {
		if want[c.Name] {
			cols = append(cols, c)
			delete(want, c.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			return nil, fmt.Errorf("unknown column %q in %s", n, b.table.Name)
		}
	}
	return cols, nil
}

// InsertCommand inserts every column except auto-increment ones.
func (b *CommandBuilder) InsertCommand() (*Command, error) {
	return b.insert(b.writable())
}

// InsertCommandFor inserts only the named columns; the others take their
// defaults.
func (b *CommandBuilder) InsertCommandFor(names ...string) (*Command, error) {
	cols, err := b.named(names)
	if err != nil {
		return nil, err
	}
	return b.insert(cols)
}

func (b *CommandBuilder) insert(cols []Column) (*Command, error) {
	if len(cols) == 0 {
		return nil, ErrNoWritableColumn
	}
	d := b.table.dialect()
	marks := &placeholders{d: d}

	names := make([]string, len(cols))
	values := make([]string, len(cols))
	params := make([]CommandParam, len(cols))
	for i, c := range cols {
		names[i] = d.Quote(c.Name)
		values[i] = marks.next()
		params[i] = CommandParam{Column: c.Name, Version: Current}
	}
	text := "INSERT INTO " + b.table.QuotedName() +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
	return &Command{Text: text, Params: params}, nil
}

// UpdateCommand sets every writable column from the current row and
// locates the row by the original primary key values.
func (b *CommandBuilder) UpdateCommand() (*Command, error) {
	return b.update(b.writable())
}

// UpdateCommandFor sets only the named columns.
func (b *CommandBuilder) UpdateCommandFor(names ...string) (*Command, error) {
	cols, err := b.named(names)
	if err != nil {
		return nil, err
	}
	return b.update(cols)
}

func (b *CommandBuilder) update(cols []Column) (*Command, error) {
	key := b.key()
	if len(key) == 0 {
		return nil, ErrNoPrimaryKey
	}
	if len(cols) == 0 {
		return nil, ErrNoWritableColumn
	}
	d := b.table.dialect()
	marks := &placeholders{d: d}

	var params []CommandParam
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = d.Quote(c.Name) + " = " + marks.next()
		params = append(params, CommandParam{Column: c.Name, Version: Current})
	}
	where, keyParams := b.keyPredicate(d, marks, key)
	params = append(params, keyParams...)

	text := "UPDATE " + b.table.QuotedName() + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	return &Command{Text: text, Params: params}, nil
}

// DeleteCommand locates the row by the original primary key values.
func (b *CommandBuilder) DeleteCommand() (*Command, error) {
	key := b.key()
	if len(key) == 0 {
		return nil, ErrNoPrimaryKey
	}
	d := b.table.dialect()
	where, params := b.keyPredicate(d, &placeholders{d: d}, key)
	text := "DELETE FROM " + b.table.QuotedName() + " WHERE " + where
	return &Command{Text: text, Params: params}, nil
}

func (b *CommandBuilder) keyPredicate(d Dialect, marks *placeholders, key []Column) (string, []CommandParam) {
	preds := make([]string, len(key))
	params := make([]CommandParam, len(key))
	for i, c := range key {
		preds[i] = d.Quote(c.Name) + " = " + marks.next()
		params[i] = CommandParam{Column: c.Name, Version: Original}
	}
	return strings.Join(preds, " AND "), params
}
