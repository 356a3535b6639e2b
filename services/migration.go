package services

import (
	"context"
	"fmt"
	"log/slog"
)

// MigrationPolicy decides what happens to guest state after a partial migration.
type MigrationPolicy string

const (
	// MigrationClearAll wipes all guest state once at least one item migrated.
	// Items that failed to migrate are lost.
	MigrationClearAll MigrationPolicy = "clear_all"
	// MigrationRetainFailed removes only the migrated items and keeps the rest.
	MigrationRetainFailed MigrationPolicy = "retain_failed"
)

// ParseMigrationPolicy maps a config value to a policy. Empty means ClearAll.
func ParseMigrationPolicy(s string) (MigrationPolicy, error) {
	switch MigrationPolicy(s) {
	case "", MigrationClearAll:
		return MigrationClearAll, nil
	case MigrationRetainFailed:
		return MigrationRetainFailed, nil
	}
	return "", fmt.Errorf("unknown migration policy %q", s)
}

// MigrationResult reports the outcome of a guest migration.
type MigrationResult struct {
	Migrated int `json:"migrated"`
	Failed   int `json:"failed"`
	Lost     int `json:"lost"`
	Retained int `json:"retained"`
}

// MigrateGuest replays every guest transaction through target, the authenticated
// creation path, in the order the guest added them. Individual failures are logged
// and skipped. Nothing is cleared when no item migrated.
func MigrateGuest(ctx context.Context, guest *GuestStore, target TransactionSource, policy MigrationPolicy, logger *slog.Logger) (MigrationResult, error) {
	var result MigrationResult

	list, err := guest.Stored(ctx)
	if err != nil {
		return result, err
	}

	migrated := make([]string, 0, len(list))
	for _, t := range list {
		if _, err := target.Add(ctx, t.Input()); err != nil {
			result.Failed++
			logger.Warn("Guest transaction not migrated",
				"guest_session", guest.SessionID(),
				"transaction_id", t.ID,
				"error", err)
			continue
		}
		migrated = append(migrated, t.ID)
	}
	result.Migrated = len(migrated)

	if result.Migrated == 0 {
		result.Retained = result.Failed
		return result, nil
	}

	switch policy {
	case MigrationRetainFailed:
		if err := guest.Remove(ctx, migrated...); err != nil {
			return result, fmt.Errorf("failed to remove migrated guest transactions: %w", err)
		}
		result.Retained = result.Failed
	default:
		if err := guest.Disable(ctx); err != nil {
			return result, fmt.Errorf("failed to clear guest state: %w", err)
		}
		result.Lost = result.Failed
		if result.Lost > 0 {
			logger.Warn("Guest state cleared with unmigrated transactions",
				"guest_session", guest.SessionID(),
				"lost", result.Lost)
		}
	}

	logger.Info("Guest migration finished",
		"guest_session", guest.SessionID(),
		"migrated", result.Migrated,
		"failed", result.Failed)
	return result, nil
}
