package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuery_Allowed(t *testing.T) {
	p := Provider{}
	for _, q := range []string{
		"SELECT * FROM users",
		"select id, name from users where id = 1",
		"SHOW TABLES",
		"SHOW DATABASES",
		"DESCRIBE users",
		"EXPLAIN SELECT * FROM users",
		"SELECT * FROM user_settings WHERE setting_name = 'theme'",
		"SELECT * FROM users WHERE name = 'DROP TABLE users'",
		"SELECT * FROM users # trailing comment with DELETE",
		"SELECT * FROM users WHERE bio = \"it's \\\" REPLACE\"",
	} {
		t.Run(q, func(t *testing.T) {
			assert.NoError(t, p.ValidateQuery(q))
		})
	}
}

func TestValidateQuery_Blocked(t *testing.T) {
	p := Provider{}
	for q, reason := range map[string]string{
		"INSERT INTO users VALUES (1, 'test')":               "only SELECT",
		"CALL some_procedure()":                              "only SELECT",
		"SET @var = 1":                                       "only SELECT",
		"SELECT * INTO OUTFILE '/tmp/data.txt' FROM users":   "INTO OUTFILE",
		"SELECT * INTO DUMPFILE '/tmp/data.bin' FROM users":  "INTO DUMPFILE",
		"SELECT id INTO @x FROM users":                       "INTO @variable",
		"SELECT LOAD_FILE('/etc/passwd')":                    "LOAD_FILE",
		"SELECT SLEEP(10)":                                   "SLEEP",
		"SELECT BENCHMARK(1000000, SHA1('test'))":            "BENCHMARK",
		"SELECT GET_LOCK('lock', 10)":                        "GET_LOCK",
		"SELECT 1; -- comment\nDROP TABLE users":             "multiple statements",
		"SELECT 1 # hide ;\n; DROP TABLE users":              "multiple statements",
		"SELECT * FROM t WHERE a = 'x\\'; DROP TABLE t; --'": "",
		"SELECT REPLACE('a', 'b', 'c')":                      "REPLACE",
		"SHOW TABLES; HANDLER users OPEN":                    "multiple statements",
		"SELECT * FROM t WHERE a IN (SELECT b FROM u RENAME)": "RENAME",
	} {
		t.Run(q, func(t *testing.T) {
			err := p.ValidateQuery(q)
			if reason == "" {
				assert.NoError(t, err, "the escaped quote keeps the tail inside the string")
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), reason)
			}
		})
	}
}

func TestRemoveStringsAndComments(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SELECT 'abc' FROM t", "SELECT '' FROM t"},
		{`SELECT "abc" FROM t`, `SELECT "" FROM t`},
		{"SELECT 'it\\'s' FROM t", "SELECT '' FROM t"},
		{"SELECT 1 # note\nFROM t", "SELECT 1  \nFROM t"},
		{"SELECT `col` FROM t", "SELECT `col` FROM t"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RemoveStringsAndComments(tc.input), tc.input)
	}
}
