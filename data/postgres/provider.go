// Package postgres binds the data package to PostgreSQL through
// github.com/lib/pq. Importing it registers the "postgres" provider.
package postgres

import (
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shakram02/go-sql-browser/data"
)

func init() {
	data.Register(Provider{})
}

// Schema is the schema browsed by the provider.
const Schema = "public"

// Provider implements data.Provider for PostgreSQL.
type Provider struct{}

func (Provider) Name() string                  { return "postgres" }
func (Provider) DriverName() string            { return "postgres" }
func (Provider) SettingsKey() string           { return "pg" }
func (Provider) SupportStoredProcedures() bool { return true }
func (Provider) CurrentDatabaseQuery() string  { return "SELECT current_database()" }

func (Provider) Dialect() data.Dialect {
	return data.Dialect{
		ParameterPrefix: "$",
		QuotePrefix:     `"`,
		QuoteSuffix:     `"`,
		BindType:        sqlx.DOLLAR,
		UnboundedLimit:  "ALL",
		QuoteIdent:      pq.QuoteIdentifier,
	}
}

// ConnectionString builds a postgres:// URL. The SSL mode defaults to
// "prefer".
func (Provider) ConnectionString(s data.Settings) (string, error) {
	if err := data.MissingSettings(map[string]string{
		"host":     s.Host,
		"port":     s.Port,
		"database": s.Database,
		"user":     s.User,
		"password": s.Password,
	}); err != nil {
		return "", err
	}
	sslmode := s.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     s.Host + ":" + s.Port,
		Path:     "/" + s.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String(), nil
}

// readOnlyOption makes read-only the default for every transaction of the
// session.
const readOnlyOption = "options='-c default_transaction_read_only=on'"

// DataSourceName accepts both URLs and key=value strings. URLs are
// converted to key=value form with pq.ParseURL.
func (Provider) DataSourceName(connStr string, readOnly bool) (string, error) {
	dsn := connStr
	if isURL(connStr) {
		var err error
		if dsn, err = pq.ParseURL(connStr); err != nil {
			return "", err
		}
	}
	if readOnly {
		dsn = strings.TrimSpace(dsn + " " + readOnlyOption)
	}
	return dsn, nil
}

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}

func (Provider) DatabaseName(connStr string) string {
	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Path, "/")
	}
	for _, field := range strings.Fields(connStr) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok {
			return strings.Trim(name, "'")
		}
	}
	return ""
}
