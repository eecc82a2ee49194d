// Package sqlite binds the data package to SQLite through the pure-Go
// modernc.org/sqlite driver. Importing it registers the "sqlite" provider.
package sqlite

import (
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shakram02/go-sql-browser/data"
)

func init() {
	data.Register(Provider{})
}

// Provider implements data.Provider for SQLite database files.
type Provider struct{}

func (Provider) Name() string                  { return "sqlite" }
func (Provider) DriverName() string            { return "sqlite" }
func (Provider) SettingsKey() string           { return "sqlite" }
func (Provider) SupportStoredProcedures() bool { return false }

func (Provider) Dialect() data.Dialect {
	return data.Dialect{
		ParameterPrefix: "@",
		QuotePrefix:     `"`,
		QuoteSuffix:     `"`,
		BindType:        sqlx.QUESTION,
		UnboundedLimit:  "-1",
	}
}

// ConnectionString returns the database path.
func (Provider) ConnectionString(s data.Settings) (string, error) {
	if err := data.MissingSettings(map[string]string{"path": s.Path}); err != nil {
		return "", err
	}
	return s.Path, nil
}

// uriEscaper escapes the characters a file: URI path cannot carry.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// DataSourceName returns connStr unchanged unless readOnly is set. A
// read-only DSN is a file: URI opening the file with mode=ro and running
// PRAGMA query_only on every connection.
func (Provider) DataSourceName(connStr string, readOnly bool) (string, error) {
	if !readOnly {
		return connStr, nil
	}
	const pragma = "_pragma=query_only(1)"
	switch {
	case connStr == "" || connStr == ":memory:":
		return "file::memory:?" + pragma, nil
	case strings.HasPrefix(connStr, "file:"):
		sep := "?"
		if strings.Contains(connStr, "?") {
			sep = "&"
		}
		return connStr + sep + "mode=ro&" + pragma, nil
	}
	return "file:" + uriEscaper.Replace(connStr) + "?mode=ro&" + pragma, nil
}

// DatabaseName returns the file name without directory or extension.
func (Provider) DatabaseName(connStr string) string {
	path := connStr
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "file:")
	name := filepath.Base(path)
	for _, ext := range []string{".db", ".sqlite3", ".sqlite"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// ConfigurePool keeps a single long-lived connection: SQLite allows one
// writer.
func (Provider) ConfigurePool(db *sqlx.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}
