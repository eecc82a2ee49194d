package data

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect describes how an engine quotes identifiers and binds parameters.
type Dialect struct {
	ParameterPrefix string
	QuotePrefix     string
	QuoteSuffix     string

	// BindType is one of the sqlx bind types (sqlx.QUESTION, sqlx.DOLLAR, ...).
	BindType int

	// UnboundedLimit is the LIMIT operand meaning "all rows", emitted when
	// a filter has an offset but no limit. Empty emits OFFSET alone.
	UnboundedLimit string

	// QuoteIdent replaces the default quoting when set.
	QuoteIdent func(ident string) string
}

// Quote wraps an identifier in the dialect's quotes, doubling any embedded
// closing quote.
func (d Dialect) Quote(ident string) string {
	if d.QuoteIdent != nil {
		return d.QuoteIdent(ident)
	}
	if d.QuoteSuffix != "" {
		ident = strings.ReplaceAll(ident, d.QuoteSuffix, d.QuoteSuffix+d.QuoteSuffix)
	}
	return d.QuotePrefix + ident + d.QuoteSuffix
}

// QuoteQualified quotes schema and name and joins them with a dot. An empty
// schema yields the quoted name alone.
func (d Dialect) QuoteQualified(schema, name string) string {
	if schema == "" {
		return d.Quote(name)
	}
	return d.Quote(schema) + "." + d.Quote(name)
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	switch d.BindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	case sqlx.NAMED:
		return ":arg" + strconv.Itoa(n)
	}
	return "?"
}

// placeholders numbers bind markers for one statement. Only generated
// fragments take markers from it; caller-supplied SQL is never rewritten.
type placeholders struct {
	d Dialect
	n int
}

func (p *placeholders) next() string {
	p.n++
	return p.d.Placeholder(p.n)
}
