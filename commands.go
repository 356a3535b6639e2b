package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"ledgerly/backend/database"
	"ledgerly/backend/models"
	"ledgerly/backend/services"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run local database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			local, err := openLocal()
			if err != nil {
				return err
			}
			defer local.Close()
			logger.Info("Migrations completed successfully")
			return nil
		},
	}
}

// openStore connects to Firestore for commands that work on account data.
func openStore(ctx context.Context) (*database.Store, error) {
	app, err := database.NewFirebaseApp(ctx, cfg.Firebase, logger)
	if err != nil {
		return nil, err
	}
	return database.NewFirestore(ctx, app, logger)
}

func seedCmd() *cobra.Command {
	var (
		owner string
		opts  services.SeedOptions
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo transactions and goals for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if owner == "" {
				return fmt.Errorf("--owner is required")
			}
			if opts.Seed == 0 {
				opts.Seed = time.Now().UnixNano()
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.Profiles.Ensure(cmd.Context(), owner, owner, ""); err != nil {
				return err
			}
			result, err := services.Seed(cmd.Context(), store.Transactions, store.Goals, owner, opts, time.Now())
			if err != nil {
				return err
			}
			logger.Info("Seeded demo data",
				"owner_id", owner,
				"transactions", result.Transactions,
				"goals", result.Goals,
				"seed", opts.Seed)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "uid to seed")
	cmd.Flags().IntVar(&opts.Transactions, "count", 25, "number of transactions")
	cmd.Flags().IntVar(&opts.Goals, "goals", 2, "number of goals")
	cmd.Flags().IntVar(&opts.Months, "months", 6, "spread transactions over this many months")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default: time based)")
	return cmd
}

func billingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Billing maintenance",
	}
	cmd.AddCommand(billingRetryCmd())
	cmd.AddCommand(billingDeadLettersCmd())
	return cmd
}

func billingRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Replay pending dead-lettered billing events once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			local, err := openLocal()
			if err != nil {
				return err
			}
			defer local.Close()

			billing := newBillingService(store, database.NewBillingLedger(local))
			report, err := billing.RetryDeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("Billing retry finished",
				"resolved", report.Resolved,
				"failed", report.Failed,
				"abandoned", report.Abandoned)
			return nil
		},
	}
}

func billingDeadLettersCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List dead-lettered billing events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, err := openLocal()
			if err != nil {
				return err
			}
			defer local.Close()

			letters, err := database.NewBillingLedger(local).ListDeadLetters(cmd.Context(), status, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEVENT\tTYPE\tATTEMPTS\tUPDATED\tLAST ERROR")
			for _, l := range letters {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
					l.ID, l.EventID, l.EventType, l.Attempts, l.UpdatedAt.Format(time.RFC3339), l.LastError)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", models.DeadLetterPending, "pending, resolved or abandoned")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func guestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Guest storage maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove guest storage idle for longer than guest.idle_ttl",
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, err := openLocal()
			if err != nil {
				return err
			}
			defer local.Close()

			n, err := purgeGuests(cmd.Context(), database.NewKVStore(local))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d rows\n", n)
			return nil
		},
	})
	return cmd
}
