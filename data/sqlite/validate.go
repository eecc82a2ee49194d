package sqlite

import (
	"fmt"
	"regexp"

	"github.com/shakram02/go-sql-browser/data"
)

var scanner = data.Scanner{Backticks: true, Brackets: true}

var forbiddenPatterns = []data.Rule{
	data.Function("load_extension"),
	data.Function("writefile"),
	data.Function("edit"),
	data.Function("fts3_tokenizer"),
}

var extraKeywords = []data.Rule{
	data.Keyword("REPLACE"),
	data.Keyword("ATTACH"),
	data.Keyword("DETACH"),
	data.Keyword("REINDEX"),
	data.Keyword("VACUUM"),
}

var pragmaWrite = regexp.MustCompile(`(?i)\bPRAGMA\s+\w+\s*=`)

func (Provider) ValidateQuery(query string) error {
	cleaned := RemoveStringsAndComments(query)
	if err := data.ValidateCommon(query, cleaned); err != nil {
		return err
	}
	if err := data.CheckRules(query, forbiddenPatterns); err != nil {
		return err
	}
	if err := data.CheckRules(cleaned, extraKeywords); err != nil {
		return err
	}
	if pragmaWrite.MatchString(cleaned) {
		return fmt.Errorf("PRAGMA writes are not allowed")
	}
	return nil
}

// RemoveStringsAndComments strips SQLite string literals and comments.
// Backtick and [bracket] identifiers are kept.
func RemoveStringsAndComments(query string) string {
	return scanner.Strip(query)
}
