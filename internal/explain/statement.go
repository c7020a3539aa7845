package explain

import (
	"strings"
	"unicode"
)

// StatementKind is the coarse class of a SQL statement, decided by its
// leading keyword.
type StatementKind int

const (
	StatementUnknown StatementKind = iota
	StatementQuery
	StatementDML
	StatementDDL
	StatementDCL
	StatementTransaction
	StatementPLSQL
)

func (k StatementKind) String() string {
	switch k {
	case StatementQuery:
		return "query"
	case StatementDML:
		return "DML"
	case StatementDDL:
		return "DDL"
	case StatementDCL:
		return "DCL"
	case StatementTransaction:
		return "transaction control"
	case StatementPLSQL:
		return "PL/SQL"
	default:
		return "unknown"
	}
}

// Explainable reports whether EXPLAIN PLAN can analyze the statement without
// running it. Unknown keywords are left to the database, which reports them
// as syntax errors.
func (k StatementKind) Explainable() bool {
	switch k {
	case StatementDDL, StatementDCL, StatementTransaction, StatementPLSQL:
		return false
	default:
		return true
	}
}

var statementKinds = map[string]StatementKind{
	"SELECT": StatementQuery,
	"WITH":   StatementQuery,

	"INSERT": StatementDML,
	"UPDATE": StatementDML,
	"DELETE": StatementDML,
	"MERGE":  StatementDML,

	"CREATE":       StatementDDL,
	"ALTER":        StatementDDL,
	"DROP":         StatementDDL,
	"TRUNCATE":     StatementDDL,
	"RENAME":       StatementDDL,
	"COMMENT":      StatementDDL,
	"PURGE":        StatementDDL,
	"FLASHBACK":    StatementDDL,
	"ANALYZE":      StatementDDL,
	"AUDIT":        StatementDDL,
	"NOAUDIT":      StatementDDL,
	"ASSOCIATE":    StatementDDL,
	"DISASSOCIATE": StatementDDL,
	"LOCK":         StatementDDL,

	"GRANT":  StatementDCL,
	"REVOKE": StatementDCL,

	"COMMIT":    StatementTransaction,
	"ROLLBACK":  StatementTransaction,
	"SAVEPOINT": StatementTransaction,
	"SET":       StatementTransaction,

	"BEGIN":   StatementPLSQL,
	"DECLARE": StatementPLSQL,
	"CALL":    StatementPLSQL,
	"EXEC":    StatementPLSQL,
	"EXECUTE": StatementPLSQL,
}

// Classify returns the kind of the statement and its leading keyword,
// skipping whitespace, comments and opening parentheses.
func Classify(query string) (StatementKind, string) {
	kw := leadingKeyword(query)
	if kind, ok := statementKinds[kw]; ok {
		return kind, kw
	}
	return StatementUnknown, kw
}

func leadingKeyword(s string) string {
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || r == '('
		})
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !unicode.IsLetter(r)
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// normalize trims surrounding whitespace and a single trailing semicolon.
func normalize(query string) string {
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")
	return strings.TrimSpace(query)
}
