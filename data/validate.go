package data

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one forbidden construct of a read-only query.
type Rule struct {
	re   *regexp.Regexp
	desc string
	kind string
}

// Keyword matches a whole SQL keyword. Keywords are checked against SQL
// with strings and comments removed.
func Keyword(word string) Rule {
	return Rule{
		re:   regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + word + `(?:[^a-zA-Z_]|$)`),
		desc: word,
		kind: "keyword",
	}
}

// Function matches a call to the named function.
func Function(name string) Rule {
	return Rule{
		re:   regexp.MustCompile(`(?i)\b` + name + `\s*\(`),
		desc: name + "()",
		kind: "function",
	}
}

// Pattern matches an arbitrary regular expression.
func Pattern(expr, desc string) Rule {
	return Rule{re: regexp.MustCompile(expr), desc: desc, kind: "pattern"}
}

// Check returns an error if the rule matches s.
func (r Rule) Check(s string) error {
	if r.re.MatchString(s) {
		return fmt.Errorf("query contains forbidden %s: %s", r.kind, r.desc)
	}
	return nil
}

// CheckRules returns the first rule violation in s.
func CheckRules(s string, rules []Rule) error {
	for _, r := range rules {
		if err := r.Check(s); err != nil {
			return err
		}
	}
	return nil
}

// commonKeywords are DML/DDL keywords blocked by every engine.
var commonKeywords = []Rule{
	Keyword("INSERT"),
	Keyword("UPDATE"),
	Keyword("DELETE"),
	Keyword("DROP"),
	Keyword("CREATE"),
	Keyword("ALTER"),
	Keyword("TRUNCATE"),
	Keyword("GRANT"),
	Keyword("REVOKE"),
}

var (
	readOnlyPrefixes = []string{"SELECT ", "SHOW ", "DESCRIBE ", "DESC ", "EXPLAIN "}
	setStatement     = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)
)

// ValidateCommon runs the read-only checks shared by all engines. query is
// the original text; cleaned has strings and comments removed.
func ValidateCommon(query, cleaned string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}

	upper := strings.ToUpper(trimmed)
	allowed := false
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(upper, prefix) || upper == strings.TrimSpace(prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("only SELECT, SHOW, DESCRIBE, and EXPLAIN queries are allowed")
	}

	if parts := strings.SplitN(cleaned, ";", 2); len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return fmt.Errorf("multiple statements are not allowed")
	}

	if err := CheckRules(cleaned, commonKeywords); err != nil {
		return err
	}

	if setStatement.MatchString(cleaned) {
		return fmt.Errorf("SET statements are not allowed")
	}
	return nil
}

// Scanner strips string literals and comments from SQL so keyword checks
// cannot be fooled by quoted text. The zero value handles standard SQL;
// the flags enable engine extensions.
type Scanner struct {
	HashComments      bool // MySQL: # line comments
	BackslashEscapes  bool // MySQL: \' inside strings
	DoubleQuoteString bool // MySQL: "..." is a string, not an identifier
	Backticks         bool // MySQL, SQLite: `identifier`
	Brackets          bool // SQLite: [identifier]
	DollarQuotes      bool // PostgreSQL: $tag$...$tag$
}

// Strip returns sql with every string literal replaced by an empty one and
// every comment replaced by a space. Quoted identifiers are kept.
func (sc Scanner) Strip(sql string) string {
	var out strings.Builder
	n := len(sql)
	i := 0

	for i < n {
		ch := sql[i]
		switch {
		case ch == '-' && i+1 < n && sql[i+1] == '-', sc.HashComments && ch == '#':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')

		case ch == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			out.WriteByte(' ')

		case sc.DollarQuotes && ch == '$' && sc.dollarEnd(sql, i) > 0:
			i = sc.dollarEnd(sql, i)
			out.WriteString("''")

		case ch == '\'':
			i = sc.skipString(sql, i, '\'')
			out.WriteString("''")

		case ch == '"' && sc.DoubleQuoteString:
			i = sc.skipString(sql, i, '"')
			out.WriteString(`""`)

		case ch == '"':
			i = copyQuoted(&out, sql, i, '"', '"')

		case sc.Backticks && ch == '`':
			i = copyQuoted(&out, sql, i, '`', '`')

		case sc.Brackets && ch == '[':
			i = copyQuoted(&out, sql, i, '[', ']')

		default:
			out.WriteByte(ch)
			i++
		}
	}
	return out.String()
}

// skipString returns the index just past the string literal opening at i.
func (sc Scanner) skipString(sql string, i int, quote byte) int {
	n := len(sql)
	i++
	for i < n {
		switch {
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i += 2
		case sql[i] == quote:
			return i + 1
		case sc.BackslashEscapes && sql[i] == '\\' && i+1 < n:
			i += 2
		default:
			i++
		}
	}
	return n
}

// dollarEnd returns the index just past a dollar-quoted string opening at
// i, or 0 if there is none.
func (sc Scanner) dollarEnd(sql string, i int) int {
	tagEnd := strings.IndexByte(sql[i+1:], '$')
	if tagEnd < 0 {
		return 0
	}
	tag := sql[i : i+tagEnd+2]
	closeIdx := strings.Index(sql[i+len(tag):], tag)
	if closeIdx < 0 {
		return 0
	}
	return i + len(tag) + closeIdx + len(tag)
}

// copyQuoted copies a quoted identifier verbatim and returns the index just
// past it. A doubled closing quote is an escaped quote.
func copyQuoted(out *strings.Builder, sql string, i int, open, end byte) int {
	n := len(sql)
	out.WriteByte(open)
	i++
	for i < n {
		if sql[i] == end {
			if i+1 < n && sql[i+1] == end && open == end {
				out.WriteByte(end)
				out.WriteByte(end)
				i += 2
				continue
			}
			out.WriteByte(end)
			return i + 1
		}
		out.WriteByte(sql[i])
		i++
	}
	return n
}
