package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/shakram02/go-sql-browser/data"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
)

func printError(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, "✗ "+format+"\n", args...)
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warningColor.Fprintf(w, "⚠ "+format+"\n", args...)
}

// printTable renders headers and rows with pterm.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// printDataTable renders a query result followed by a row count.
func printDataTable(w io.Writer, t *data.DataTable) error {
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		rows[i] = cells
	}
	if len(t.Columns) > 0 {
		if err := printTable(w, t.ColumnNames(), rows); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%d row(s)\n", len(t.Rows))
	if t.Truncated {
		printWarning(w, "result truncated at %d rows", len(t.Rows))
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(v, "\n", `\n`)
	default:
		return fmt.Sprint(v)
	}
}

func formatColumns(cols []data.Column) [][]string {
	rows := make([][]string, len(cols))
	for i, c := range cols {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		var flags []string
		if c.PrimaryKey {
			flags = append(flags, "PK")
		}
		if c.AutoIncrement {
			flags = append(flags, "AUTO")
		}
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		rows[i] = []string{c.Name, c.DataType, nullable, def, strings.Join(flags, " ")}
	}
	return rows
}
