package data

import (
	"context"
	"errors"
	"fmt"
)

// RowState says how a row changed since it was filled.
type RowState int

const (
	Added RowState = iota + 1
	Modified
	Deleted
)

func (s RowState) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("RowState(%d)", int(s))
}

// RowChange is one edit to write back. Original is required for Modified
// and Deleted rows, Current for Added and Modified rows.
type RowChange struct {
	State    RowState
	Original map[string]any
	Current  map[string]any
}

// DataAdapter fills a table's rows and writes edits back through the
// generated commands.
type DataAdapter struct {
	Table      *Table
	SelectText string
	SelectArgs []any

	InsertCommand *Command
	UpdateCommand *Command
	DeleteCommand *Command

	db *Database
}

// Fill runs the select command.
func (a *DataAdapter) Fill(ctx context.Context) (*DataTable, error) {
	return a.db.fill(ctx, a.SelectText, a.SelectArgs...)
}

// RestrictColumns regenerates the INSERT and UPDATE commands so that they
// write only the named columns. Columns left out keep their defaults on
// insert and their stored values on update.
func (a *DataAdapter) RestrictColumns(ctx context.Context, names ...string) error {
	if a.db.readOnly {
		return ErrReadOnly
	}
	cols, err := a.Table.Columns(ctx)
	if err != nil {
		return err
	}
	b := NewCommandBuilder(a.Table, cols)

	insert, err := b.InsertCommandFor(names...)
	if err != nil {
		return err
	}
	update, err := b.UpdateCommandFor(names...)
	if err != nil && !errors.Is(err, ErrNoPrimaryKey) {
		return err
	}
	a.InsertCommand = insert
	a.UpdateCommand = update
	return nil
}

func (a *DataAdapter) command(state RowState) *Command {
	switch state {
	case Added:
		return a.InsertCommand
	case Modified:
		return a.UpdateCommand
	case Deleted:
		return a.DeleteCommand
	}
	return nil
}

// Update applies changes in one transaction and returns the total number of
// rows affected. An UPDATE or DELETE that does not touch exactly one row
// aborts the batch with ErrConcurrency.
func (a *DataAdapter) Update(ctx context.Context, changes ...RowChange) (int64, error) {
	if a.db.readOnly {
		return 0, ErrReadOnly
	}
	for i, ch := range changes {
		if a.command(ch.State) == nil {
			return 0, fmt.Errorf("change %d (%s): %w", i, ch.State, ErrNoCommand)
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	if err := a.db.Connect(ctx); err != nil {
		return 0, err
	}
	defer a.db.Disconnect()

	ctx, cancel := a.db.withTimeout(ctx)
	defer cancel()

	tx, err := a.db.BeginTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var total int64
	for i, ch := range changes {
		cmd := a.command(ch.State)
		res, err := tx.ExecContext(ctx, cmd.Text, cmd.Args(ch.Original, ch.Current)...)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("change %d (%s): %w", i, ch.State, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("change %d (%s): %w", i, ch.State, err)
		}
		if ch.State != Added && n != 1 {
			tx.Rollback()
			return 0, fmt.Errorf("change %d (%s) affected %d rows: %w", i, ch.State, n, ErrConcurrency)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return total, nil
}
