package retrieve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SQLSource executes planned queries against a SQL database.
type SQLSource struct {
	id          string
	description string
	db          *sql.DB
}

// NewSQLSource creates a source backed by db. The caller owns the
// database handle.
func NewSQLSource(id, description string, db *sql.DB) *SQLSource {
	return &SQLSource{
		id:          id,
		description: description,
		db:          db,
	}
}

// ID implements Source.
func (s *SQLSource) ID() string { return s.id }

// Describe implements Source.
func (s *SQLSource) Describe() string { return s.description }

// Fetch implements Source. The call's query is validated with
// CheckQuery before it runs; rows are rendered as a JSON array of
// objects.
func (s *SQLSource) Fetch(ctx context.Context, call Call) (string, error) {
	if call.Query == "" {
		return "", fmt.Errorf("resource %q requires a query", s.id)
	}
	if err := CheckQuery(call.Query); err != nil {
		return "", err
	}

	rows, err := s.db.QueryContext(ctx, call.Query)
	if err != nil {
		return "", fmt.Errorf("executing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderRows(rows)
}

func renderRows(rows *sql.Rows) (string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("reading columns: %w", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return "", fmt.Errorf("scanning row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating rows: %w", err)
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encoding rows: %w", err)
	}
	return string(encoded), nil
}

// normalizeValue makes driver values JSON-friendly. Most drivers
// return TEXT columns as []byte.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ErrNotSelect is returned by CheckQuery when a query contains
// anything other than SELECT statements.
var ErrNotSelect = errors.New("all queries must be a SELECT statement")

// CheckQuery verifies that every statement in query is a SELECT.
// Model-generated SQL runs against live databases, so anything that
// could write is rejected.
func CheckQuery(query string) error {
	statements := splitStatements(query)
	if len(statements) == 0 {
		return ErrNotSelect
	}
	for _, statement := range statements {
		if statementType(statement) != "select" {
			return ErrNotSelect
		}
	}
	return nil
}

// statementKeywords are the keywords that determine a statement's type
// when they appear at the top level.
var statementKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "truncate": true,
	"grant": true, "revoke": true, "merge": true, "replace": true,
	"pragma": true, "attach": true, "detach": true, "vacuum": true,
	"begin": true, "commit": true, "rollback": true, "set": true,
	"call": true, "exec": true, "execute": true, "copy": true,
	"explain": true,
}

// statementType returns the first statement keyword found at
// parenthesis depth zero, lowercased, or "" when there is none.
// Keywords inside string literals, comments, or parenthesised
// subqueries do not count, so "WITH t AS (SELECT 1) SELECT * FROM t"
// is classified as select while "WITH t AS (SELECT 1) DELETE FROM x"
// is classified as delete.
func statementType(statement string) string {
	depth := 0
	i := 0
	n := len(statement)
	for i < n {
		c := statement[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(statement, i)
		case c == '-' && i+1 < n && statement[i+1] == '-':
			i = skipLineComment(statement, i)
		case c == '/' && i+1 < n && statement[i+1] == '*':
			i = skipBlockComment(statement, i)
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isWordByte(c):
			start := i
			for i < n && isWordByte(statement[i]) {
				i++
			}
			word := strings.ToLower(statement[start:i])
			if depth == 0 && statementKeywords[word] {
				return word
			}
		default:
			i++
		}
	}
	return ""
}

// splitStatements splits query on semicolons that sit outside string
// literals and comments, dropping empty fragments.
func splitStatements(query string) []string {
	var statements []string
	start := 0
	i := 0
	n := len(query)
	for i < n {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i)
		case c == '-' && i+1 < n && query[i+1] == '-':
			i = skipLineComment(query, i)
		case c == '/' && i+1 < n && query[i+1] == '*':
			i = skipBlockComment(query, i)
		case c == ';':
			statements = appendStatement(statements, query[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	return appendStatement(statements, query[start:])
}

func appendStatement(statements []string, s string) []string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return append(statements, trimmed)
	}
	return statements
}

// skipQuoted advances past the literal opening at start. A doubled
// quote character inside the literal is an escape, not a terminator.
func skipQuoted(s string, start int) int {
	q := s[start]
	i := start + 1
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func skipLineComment(s string, start int) int {
	i := start
	for i < len(s) && s[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(s string, start int) int {
	i := start + 2
	for i+1 < len(s) {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
