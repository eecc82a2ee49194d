// Package mysql binds the data package to MySQL through
// github.com/go-sql-driver/mysql. Importing it registers the "mysql"
// provider.
package mysql

import (
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/shakram02/go-sql-browser/data"
)

func init() {
	data.Register(Provider{})
}

// Provider implements data.Provider for MySQL and MariaDB.
type Provider struct{}

func (Provider) Name() string                  { return "mysql" }
func (Provider) DriverName() string            { return "mysql" }
func (Provider) SettingsKey() string           { return "mysql" }
func (Provider) SupportStoredProcedures() bool { return true }
func (Provider) CurrentDatabaseQuery() string  { return "SELECT DATABASE()" }

func (Provider) Dialect() data.Dialect {
	return data.Dialect{
		ParameterPrefix: "?",
		QuotePrefix:     "`",
		QuoteSuffix:     "`",
		BindType:        sqlx.QUESTION,
		UnboundedLimit:  "18446744073709551615",
	}
}

// ConnectionString builds a go-sql-driver DSN of the form
// user:password@tcp(host:port)/database.
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
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	return cfg.FormatDSN(), nil
}

// DataSourceName parses connStr and turns on clientFoundRows so that an
// UPDATE reports the rows it matched, not only the rows it changed. A
// read-only DSN sets transaction_read_only on every new connection.
func (Provider) DataSourceName(connStr string, readOnly bool) (string, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return "", err
	}
	cfg.ClientFoundRows = true
	if readOnly {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params["transaction_read_only"] = "1"
	}
	return cfg.FormatDSN(), nil
}

func (Provider) DatabaseName(connStr string) string {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return ""
	}
	return cfg.DBName
}
