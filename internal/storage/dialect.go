package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported driver names, as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// dialect captures what differs between the SQL engines: schema, placeholder
// syntax, DSN tweaks and how a duplicate key is reported.
type dialect struct {
	name        string
	schema      string
	numbered    bool
	maxConns    int
	prepareDSN  func(dsn string) (string, error)
	isDuplicate func(err error) bool
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name: DriverSQLite,
		schema: `CREATE TABLE IF NOT EXISTS ` + Collection + ` (
	path TEXT NOT NULL PRIMARY KEY,
	uid  TEXT NOT NULL UNIQUE,
	doc  BLOB NOT NULL
)`,
		// a single connection keeps :memory: databases shared and avoids SQLITE_BUSY
		maxConns:   1,
		prepareDSN: func(dsn string) (string, error) { return dsn, nil },
		isDuplicate: func(err error) bool {
			var se sqlite3.Error
			if errors.As(err, &se) {
				return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
					se.ExtendedCode == sqlite3.ErrConstraintUnique
			}
			return false
		},
	},
	DriverMySQL: {
		name: DriverMySQL,
		// VARBINARY keeps key comparison byte-wise, matching the range semantics
		schema: `CREATE TABLE IF NOT EXISTS ` + Collection + ` (
	path VARBINARY(767) NOT NULL PRIMARY KEY,
	uid  CHAR(36) NOT NULL UNIQUE,
	doc  LONGBLOB NOT NULL
)`,
		prepareDSN: func(dsn string) (string, error) {
			cfg, err := mysql.ParseDSN(dsn)
			if err != nil {
				return "", err
			}
			// Update relies on matched rows, not changed rows.
			cfg.ClientFoundRows = true
			return cfg.FormatDSN(), nil
		},
		isDuplicate: func(err error) bool {
			var me *mysql.MySQLError
			return errors.As(err, &me) && me.Number == 1062
		},
	},
	DriverPostgres: {
		name: DriverPostgres,
		schema: `CREATE TABLE IF NOT EXISTS ` + Collection + ` (
	path TEXT COLLATE "C" NOT NULL PRIMARY KEY,
	uid  TEXT NOT NULL UNIQUE,
	doc  BYTEA NOT NULL
)`,
		numbered:   true,
		prepareDSN: func(dsn string) (string, error) { return dsn, nil },
		isDuplicate: func(err error) bool {
			var pe *pq.Error
			return errors.As(err, &pe) && pe.Code == "23505"
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("storage: unsupported driver %q", driver)
	}
	return d, nil
}

// bind rewrites '?' placeholders into the dialect's syntax.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
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
