package data

import (
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

var (
	backtick = Dialect{ParameterPrefix: "?", QuotePrefix: "`", QuoteSuffix: "`", BindType: sqlx.QUESTION, UnboundedLimit: "18446744073709551615"}
	ansi     = Dialect{ParameterPrefix: "$", QuotePrefix: `"`, QuoteSuffix: `"`, BindType: sqlx.DOLLAR, UnboundedLimit: "ALL"}
)

func TestDialect_Quote(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		input    string
		expected string
	}{
		{backtick, "simple_table", "`simple_table`"},
		{backtick, "table`with`backticks", "`table``with``backticks`"},
		{backtick, "table with spaces", "`table with spaces`"},
		{backtick, "", "``"},
		{ansi, "Orders", `"Orders"`},
		{ansi, `say "hi"`, `"say ""hi"""`},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.dialect.Quote(tc.input), "Quote(%q)", tc.input)
	}
}

func TestDialect_QuoteQualified(t *testing.T) {
	assert.Equal(t, "`orders`", backtick.QuoteQualified("", "orders"))
	assert.Equal(t, `"public"."orders"`, ansi.QuoteQualified("public", "orders"))
}

func TestDialect_QuoteIdent(t *testing.T) {
	upper := Dialect{QuoteIdent: func(ident string) string { return "[" + strings.ToUpper(ident) + "]" }}
	assert.Equal(t, "[ORDERS]", upper.Quote("orders"))
	assert.Equal(t, "[DBO].[ORDERS]", upper.QuoteQualified("dbo", "orders"))
}

func TestDialect_Placeholder(t *testing.T) {
	tests := []struct {
		bindType int
		expected string
	}{
		{sqlx.QUESTION, "?"},
		{sqlx.UNKNOWN, "?"},
		{sqlx.DOLLAR, "$3"},
		{sqlx.AT, "@p3"},
		{sqlx.NAMED, ":arg3"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Dialect{BindType: tc.bindType}.Placeholder(3))
	}
}
