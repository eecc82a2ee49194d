package mysql

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-sql-browser/data"
)

func TestProviderIsRegistered(t *testing.T) {
	p, err := data.Lookup("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", p.DriverName())
	assert.True(t, p.SupportStoredProcedures())
}

func TestDialect(t *testing.T) {
	d := Provider{}.Dialect()
	assert.Equal(t, "?", d.ParameterPrefix)
	assert.Equal(t, "`", d.QuotePrefix)
	assert.Equal(t, "`", d.QuoteSuffix)
	assert.Equal(t, "`odd``name`", d.Quote("odd`name"))
	assert.Equal(t, "18446744073709551615", d.UnboundedLimit)
}

func TestConnectionString(t *testing.T) {
	dsn, err := Provider{}.ConnectionString(data.Settings{
		Host: "localhost", Port: "3306", Database: "shop", User: "root", Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "root:secret@tcp(localhost:3306)/shop", dsn)
}

func TestConnectionString_Missing(t *testing.T) {
	_, err := Provider{}.ConnectionString(data.Settings{Host: "localhost", Database: "shop"})
	require.Error(t, err)
	assert.Equal(t, "missing required settings: [password port user]", err.Error())
}

func TestDataSourceName_ReportsFoundRows(t *testing.T) {
	dsn, err := Provider{}.DataSourceName("app:pw@tcp(db:3306)/shop?parseTime=true", false)
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "shop", cfg.DBName)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.NotContains(t, cfg.Params, "transaction_read_only")
}

func TestDataSourceName_ReadOnly(t *testing.T) {
	dsn, err := Provider{}.DataSourceName("app:pw@tcp(db:3306)/shop?sql_mode=ANSI", true)
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Params["transaction_read_only"])
	assert.Equal(t, "ANSI", cfg.Params["sql_mode"])
	assert.True(t, cfg.ClientFoundRows)

	dsn, err = Provider{}.DataSourceName("app:pw@tcp(db:3306)/shop", true)
	require.NoError(t, err)
	cfg, err = mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Params["transaction_read_only"])
}

func TestDataSourceName_Invalid(t *testing.T) {
	_, err := Provider{}.DataSourceName("not a dsn", false)
	assert.Error(t, err)
}

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"user:password@tcp(localhost:3306)/mydb", "mydb"},
		{"user:password@tcp(localhost:3306)/mydb?charset=utf8mb4", "mydb"},
		{"user:password@tcp(localhost:3306)/", ""},
		{"garbage", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Provider{}.DatabaseName(tc.dsn), tc.dsn)
	}
}
