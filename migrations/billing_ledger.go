package migrations

import (
	"database/sql"
	"fmt"
)

// CreateBillingEvents creates the table of processed webhook event ids.
func CreateBillingEvents(db *sql.DB, _ Dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS billing_events (
			event_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL
		)`)
	return err
}

// CreateBillingDeadLetters creates the redelivery queue for failed billing events.
func CreateBillingDeadLetters(db *sql.DB, d Dialect) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS billing_dead_letters (
			id %s,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload %s NOT NULL,
			last_error TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, d.AutoIncrement(), d.Blob()))
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_dead_letters_status ON billing_dead_letters(status, id)`)
	return err
}

// CreateBillingSubscriptions creates the per-subscription marker of the latest
// applied event.
func CreateBillingSubscriptions(db *sql.DB, _ Dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS billing_subscriptions (
			subscription_id TEXT PRIMARY KEY,
			event_created BIGINT NOT NULL,
			event_rank INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	return err
}
