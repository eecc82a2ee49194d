package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []Column{
	{Name: "id", PrimaryKey: true, AutoIncrement: true},
	{Name: "customer"},
	{Name: "total"},
}

func TestCommandBuilder_Insert(t *testing.T) {
	b := NewCommandBuilder(boundTable(backtick, "", "orders"), orderColumns)

	cmd, err := b.InsertCommand()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `orders` (`customer`, `total`) VALUES (?, ?)", cmd.Text)
	assert.Equal(t, []any{"ann", 12.5}, cmd.Args(nil, map[string]any{"id": 7, "customer": "ann", "total": 12.5}))
}

func TestCommandBuilder_Update(t *testing.T) {
	b := NewCommandBuilder(boundTable(backtick, "", "orders"), orderColumns)

	cmd, err := b.UpdateCommand()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `orders` SET `customer` = ?, `total` = ? WHERE `id` = ?", cmd.Text)

	args := cmd.Args(
		map[string]any{"id": 7, "customer": "ann", "total": 12.5},
		map[string]any{"id": 7, "customer": "bob", "total": 12.5},
	)
	assert.Equal(t, []any{"bob", 12.5, 7}, args)
}

func TestCommandBuilder_CompositeKeyWithDollarPlaceholders(t *testing.T) {
	cols := []Column{
		{Name: "order_id", PrimaryKey: true},
		{Name: "line", PrimaryKey: true},
		{Name: "qty"},
	}
	b := NewCommandBuilder(boundTable(ansi, "public", "order_lines"), cols)

	update, err := b.UpdateCommand()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "public"."order_lines" SET "order_id" = $1, "line" = $2, "qty" = $3 WHERE "order_id" = $4 AND "line" = $5`, update.Text)

	del, err := b.DeleteCommand()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "public"."order_lines" WHERE "order_id" = $1 AND "line" = $2`, del.Text)
	assert.Equal(t, []any{1, 2}, del.Args(map[string]any{"order_id": 1, "line": 2, "qty": 3}, nil))
}

func TestCommandBuilder_WithoutKey(t *testing.T) {
	b := NewCommandBuilder(boundTable(backtick, "", "log"), []Column{{Name: "message"}})

	_, err := b.InsertCommand()
	require.NoError(t, err)

	_, err = b.UpdateCommand()
	require.ErrorIs(t, err, ErrNoPrimaryKey)
	_, err = b.DeleteCommand()
	require.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestCommandBuilder_NoWritableColumns(t *testing.T) {
	b := NewCommandBuilder(boundTable(backtick, "", "seq"), []Column{{Name: "id", PrimaryKey: true, AutoIncrement: true}})

	_, err := b.InsertCommand()
	require.ErrorIs(t, err, ErrNoWritableColumn)
	_, err = b.UpdateCommand()
	require.ErrorIs(t, err, ErrNoWritableColumn)
	_, err = b.DeleteCommand()
	require.NoError(t, err)
}

func TestCommandBuilder_ColumnSubsets(t *testing.T) {
	cols := []Column{
		{Name: "id", PrimaryKey: true},
		{Name: "name"},
		{Name: "status"},
		{Name: "body"},
	}
	b := NewCommandBuilder(boundTable(ansi, "", "items"), cols)

	insert, err := b.InsertCommandFor("status", "name")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "items" ("name", "status") VALUES ($1, $2)`, insert.Text, "table order")
	assert.Equal(t, []any{"a", "new"}, insert.Args(nil, map[string]any{"name": "a", "status": "new"}))

	update, err := b.UpdateCommandFor("name")
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "items" SET "name" = $1 WHERE "id" = $2`, update.Text)
	assert.Equal(t, []any{"b", 7}, update.Args(map[string]any{"id": 7}, map[string]any{"name": "b"}))

	_, err = b.InsertCommandFor("name", "nickname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "nickname" in items`)

	_, err = b.UpdateCommandFor()
	require.ErrorIs(t, err, ErrNoWritableColumn)
}

func TestCommandBuilder_ExplicitAutoIncrementColumn(t *testing.T) {
	b := NewCommandBuilder(boundTable(backtick, "", "orders"), orderColumns)

	cmd, err := b.InsertCommandFor("id", "customer")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `orders` (`id`, `customer`) VALUES (?, ?)", cmd.Text)
}
