package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ledgerly/backend/migrations"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// LocalDB is the SQL database that holds guest storage and the billing ledger.
type LocalDB struct {
	*sql.DB
	dialect migrations.Dialect
}

// OpenLocal connects to the local database. sqlite3 runs in WAL mode with immediate
// write transactions; postgres goes through lib/pq.
func OpenLocal(driver, dsn string) (*LocalDB, error) {
	dialect := migrations.Dialect(driver)

	switch dialect {
	case migrations.SQLite:
		dsn = sqliteDSN(dsn)
	case migrations.Postgres:
	default:
		return nil, fmt.Errorf("unsupported local database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if dialect == migrations.SQLite {
		if isMemory(dsn) {
			// every connection to :memory: is a separate database
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(5)
			db.SetMaxIdleConns(5)
		}
		db.SetConnMaxLifetime(5 * time.Minute)

		if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return &LocalDB{DB: db, dialect: dialect}, nil
}

// Dialect returns the SQL flavour of the connection.
func (db *LocalDB) Dialect() migrations.Dialect {
	return db.dialect
}

// Rebind rewrites ? placeholders for the connection's dialect.
func (db *LocalDB) Rebind(query string) string {
	return db.dialect.Rebind(query)
}

// Migrate applies pending migrations.
func (db *LocalDB) Migrate(logger *slog.Logger) error {
	if err := migrations.RunMigrations(db.DB, db.dialect, logger); err != nil {
		logger.Error("Error running migrations", "error", err)
		return err
	}
	return nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if isMemory(dsn) {
		return dsn + "?_txlock=immediate"
	}
	return dsn + "?_journal=WAL&_timeout=10000&_busy_timeout=10000&_txlock=immediate"
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// RedactDSN masks the password of a URL-style DSN for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	return u.Redacted()
}
