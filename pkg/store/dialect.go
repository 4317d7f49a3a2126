package store

import (
	"fmt"
	"strconv"
	"strings"
)

func (o Options) driverName() (string, error) {
	switch o.Dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	}
	return "", fmt.Errorf("store: unsupported dialect %q", o.Dialect)
}

// dataSource builds the connection string. SQLite connections get foreign
// keys, WAL, a busy timeout and immediate write transactions.
func (o Options) dataSource() string {
	if o.DSN != "" || o.Dialect != DialectSQLite {
		return o.DSN
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(" + strconv.FormatInt(o.BusyTimeout.Milliseconds(), 10) + ")",
		"_txlock=immediate",
	}
	if o.Path != ":memory:" {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return "file:" + o.Path + "?" + strings.Join(pragmas, "&")
}

// rebind rewrites ? placeholders to $n for Postgres.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
