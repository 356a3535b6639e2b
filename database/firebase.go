package database

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"ledgerly/backend/config"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase Admin SDK. Credentials are taken from the
// first configured source: raw JSON, base64 JSON, then a file. Without any of them
// application default credentials are used, which is also how the emulators connect.
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig, logger *slog.Logger) (*firebase.App, error) {
	var opts []option.ClientOption

	switch {
	case cfg.CredentialsJSON != "":
		logger.Info("Using JSON Firebase credentials from configuration")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsBase64 != "":
		logger.Info("Using base64-encoded Firebase credentials from configuration")
		credBytes, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 Firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credBytes))
	case cfg.CredentialsFile != "":
		logger.Info("Using Firebase credentials file", "path", cfg.CredentialsFile)
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		logger.Info("No specific Firebase credentials found, using application default credentials")
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}
