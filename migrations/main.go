package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Dialect is the SQL flavour of the local database.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
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

// AutoIncrement is the column type of an auto-incrementing primary key.
func (d Dialect) AutoIncrement() string {
	if d == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Blob is the column type of raw bytes.
func (d Dialect) Blob() string {
	if d == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}

// Migration is one named schema step.
type Migration struct {
	Name string
	Fn   func(db *sql.DB, d Dialect) error
}

// All lists the migrations in the order they are applied.
var All = []Migration{
	{"create_local_storage", CreateLocalStorage},
	{"create_billing_events", CreateBillingEvents},
	{"create_billing_dead_letters", CreateBillingDeadLetters},
	{"create_billing_subscriptions", CreateBillingSubscriptions},
}

// RunMigrations executes all migrations in the correct order
func RunMigrations(db *sql.DB, d Dialect, logger *slog.Logger) error {
	logger.Info("Running migrations...", "dialect", string(d))

	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS migrations (
			id %s,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, d.AutoIncrement()))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range All {
		var count int
		err := db.QueryRow(d.Rebind("SELECT COUNT(*) FROM migrations WHERE name = ?"), migration.Name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		if count > 0 {
			logger.Debug("Skipping already applied migration", "migration", migration.Name)
			continue
		}

		logger.Info("Applying migration", "migration", migration.Name)
		if err := migration.Fn(db, d); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}

		if _, err := db.Exec(d.Rebind("INSERT INTO migrations (name) VALUES (?)"), migration.Name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
	}

	logger.Info("All migrations completed successfully")
	return nil
}

// Applied returns the names of the applied migrations in order.
func Applied(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM migrations ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
