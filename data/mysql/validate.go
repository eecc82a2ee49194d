package mysql

import "github.com/shakram02/go-sql-browser/data"

var scanner = data.Scanner{
	HashComments:      true,
	BackslashEscapes:  true,
	DoubleQuoteString: true,
	Backticks:         true,
}

// Checked against the raw query text.
var forbiddenPatterns = []data.Rule{
	data.Pattern(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
	data.Pattern(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
	data.Pattern(`(?i)\bINTO\s+@`, "INTO @variable"),
	data.Function("LOAD_FILE"),
	data.Function("SLEEP"),
	data.Function("BENCHMARK"),
	data.Function("GET_LOCK"),
	data.Function("RELEASE_LOCK"),
	data.Function("IS_FREE_LOCK"),
	data.Function("IS_USED_LOCK"),
	data.Function("WAIT_FOR_EXECUTED_GTID_SET"),
	data.Function("WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS"),
	data.Function("MASTER_POS_WAIT"),
	data.Function("SOURCE_POS_WAIT"),
}

var extraKeywords = []data.Rule{
	data.Keyword("CALL"),
	data.Keyword("EXEC"),
	data.Keyword("EXECUTE"),
	data.Keyword("REPLACE"),
	data.Keyword("LOAD"),
	data.Keyword("HANDLER"),
	data.Keyword("RENAME"),
}

// ValidateQuery accepts a single SELECT, SHOW, DESCRIBE or EXPLAIN.
func (Provider) ValidateQuery(query string) error {
	cleaned := RemoveStringsAndComments(query)
	if err := data.ValidateCommon(query, cleaned); err != nil {
		return err
	}
	if err := data.CheckRules(query, forbiddenPatterns); err != nil {
		return err
	}
	return data.CheckRules(cleaned, extraKeywords)
}

// RemoveStringsAndComments strips MySQL string literals and comments,
// including # comments, backslash escapes and double-quoted strings.
func RemoveStringsAndComments(query string) string {
	return scanner.Strip(query)
}
