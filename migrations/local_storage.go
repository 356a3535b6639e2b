package migrations

import (
	"database/sql"
)

// CreateLocalStorage creates the namespaced key/value table backing guest sessions.
func CreateLocalStorage(db *sql.DB, _ Dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS local_storage (
			namespace TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, storage_key)
		)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_local_storage_updated ON local_storage(updated_at)`)
	return err
}
