package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ledgerly/backend/api"
	"ledgerly/backend/common"
	"ledgerly/backend/database"
	"ledgerly/backend/handlers"
	"ledgerly/backend/middleware"
	"ledgerly/backend/security"
	"ledgerly/backend/services"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v76/client"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	logger.Info("Starting Ledgerly", "version", version, "env", cfg.Env)

	app, err := database.NewFirebaseApp(ctx, cfg.Firebase, logger)
	if err != nil {
		return err
	}

	var verifier middleware.TokenVerifier
	var identities services.IdentityDeleter
	authClient, err := app.Auth(ctx)
	switch {
	case err == nil:
		verifier, identities = authClient, authClient
	case cfg.IsDevelopment():
		logger.Warn("Firebase auth unavailable, token verification disabled", "error", err)
	default:
		return fmt.Errorf("failed to get Firebase Auth client: %w", err)
	}

	store, err := database.NewFirestore(ctx, app, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	local, err := openLocal()
	if err != nil {
		return err
	}
	defer local.Close()

	kv := database.NewKVStore(local)
	ledger := database.NewBillingLedger(local)

	cipher, err := newCipher()
	if err != nil {
		return err
	}

	policy, err := services.ParseMigrationPolicy(cfg.MigrationPolicy)
	if err != nil {
		return err
	}

	plans := services.NewPlans(cfg.FreeMaxTransactions)
	billing := newBillingService(store, ledger)

	authenticator := middleware.NewAuthenticator(verifier, store.Profiles, cipher, middleware.AuthOptions{
		DevBypass:     cfg.IsDevelopment(),
		SecureCookies: !cfg.IsDevelopment(),
	}, logger)

	h := handlers.New(handlers.Options{
		Sources: &services.Sources{
			Transactions:  store.Transactions,
			Storage:       kv,
			Plans:         plans,
			GuestCapacity: cfg.GuestCapacity,
		},
		Goals:           store.Goals,
		Profiles:        store.Profiles,
		Preferences:     services.NewPreferencesService(store.Profiles, kv),
		Billing:         billing,
		Accounts:        services.NewAccountService(store.Profiles, identities, logger),
		Plans:           plans,
		Cookies:         authenticator,
		MigrationPolicy: policy,
		Version:         version,
		Logger:          logger,
	})
	cors := middleware.NewCORS(cfg.CORSAllowedOrigins, cfg.IsDevelopment(), logger)
	server := api.NewServer(h, authenticator, cors, api.Options{StaticDir: cfg.StaticDir}, logger)

	scheduler := services.NewScheduler(logger)
	if err := billing.ScheduleRetries(scheduler, cfg.Billing.RetrySchedule, time.Minute); err != nil {
		return err
	}
	if err := scheduleGuestPurge(scheduler, kv); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Handler:      server.Handler(),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openLocal() (*database.LocalDB, error) {
	logger.Info("Opening local database", "driver", cfg.LocalDB.Driver, "dsn", database.RedactDSN(cfg.LocalDB.DSN))
	local, err := database.OpenLocal(cfg.LocalDB.Driver, cfg.LocalDB.DSN)
	if err != nil {
		return nil, err
	}
	if err := local.Migrate(logger); err != nil {
		local.Close()
		return nil, err
	}
	return local, nil
}

// newCipher falls back to a per-process key in development, which invalidates guest
// cookies on restart.
func newCipher() (*security.Cipher, error) {
	if cfg.EncryptionKey != "" {
		return security.NewCipher(cfg.EncryptionKey)
	}
	logger.Warn("encryption_key not set, using a random key. Guest sessions will not survive a restart.")
	return security.NewRandomCipher()
}

func newBillingService(store *database.Store, ledger *database.BillingLedger) *services.BillingService {
	var checkout services.CheckoutSessions
	if cfg.Stripe.SecretKey != "" {
		sc := &client.API{}
		sc.Init(cfg.Stripe.SecretKey, nil)
		checkout = sc.CheckoutSessions
	} else {
		logger.Warn("stripe.secret_key not set, checkout is disabled")
	}

	return services.NewBillingService(store.Profiles, ledger, checkout, services.BillingOptions{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		MaxAttempts:   cfg.Billing.MaxAttempts,
		Retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}, logger)
}

func scheduleGuestPurge(scheduler *services.Scheduler, kv *database.KVStore) error {
	return scheduler.Add("guest-purge", cfg.GuestPurgeSchedule, func(ctx context.Context) error {
		_, err := purgeGuests(ctx, kv)
		return err
	})
}

func purgeGuests(ctx context.Context, kv *database.KVStore) (int64, error) {
	cutoff := time.Now().Add(-cfg.GuestIdleTTL)
	n, err := kv.PurgeIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle guests: %w", err)
	}
	if n > 0 {
		logger.Info("Purged idle guest storage", "rows", n, "cutoff", cutoff)
	}
	return n, nil
}
