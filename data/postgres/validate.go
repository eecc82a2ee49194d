package postgres

import "github.com/shakram02/go-sql-browser/data"

var scanner = data.Scanner{DollarQuotes: true}

var forbiddenPatterns = []data.Rule{
	data.Pattern(`(?i)\bCOPY\s+.*\bTO\b`, "COPY ... TO"),
	data.Pattern(`(?i)\bCOPY\s+.*\bFROM\b`, "COPY ... FROM"),
	data.Function("pg_read_file"),
	data.Function("pg_read_binary_file"),
	data.Function("pg_ls_dir"),
	data.Function("lo_import"),
	data.Function("lo_export"),
	data.Function("pg_sleep"),
	data.Function("pg_sleep_for"),
	data.Function("pg_sleep_until"),
	data.Function("pg_advisory_lock"),
	data.Function("pg_advisory_xact_lock"),
	data.Function("pg_try_advisory_lock"),
}

var extraKeywords = []data.Rule{
	data.Keyword("CALL"),
	data.Keyword("EXECUTE"),
	data.Keyword("COPY"),
	data.Keyword("LISTEN"),
	data.Keyword("NOTIFY"),
	data.Keyword("PREPARE"),
	data.Keyword("DEALLOCATE"),
	data.Keyword("VACUUM"),
	data.Keyword("REINDEX"),
	data.Keyword("CLUSTER"),
}

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

// RemoveStringsAndComments strips PostgreSQL string literals (including
// dollar-quoted bodies) and comments. Double quotes delimit identifiers.
func RemoveStringsAndComments(query string) string {
	return scanner.Strip(query)
}
