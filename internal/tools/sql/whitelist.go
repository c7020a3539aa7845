package sqltools

import "strings"

// Whitelist restricts the tables the catalog tools expose. Entries are either
// a bare table name or SCHEMA.TABLE, compared case-insensitively. An empty
// whitelist allows everything.
type Whitelist []string

func (w Whitelist) Allows(schema, table string) bool {
	if len(w) == 0 {
		return true
	}
	schema = strings.ToUpper(schema)
	table = strings.ToUpper(table)
	qualified := schema + "." + table
	for _, entry := range w {
		entry = strings.ToUpper(strings.TrimSpace(entry))
		if entry == table || entry == qualified {
			return true
		}
	}
	return false
}
