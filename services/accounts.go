package services

import (
	"context"
	"fmt"
	"log/slog"
)

// IdentityDeleter removes an identity from the auth provider. *auth.Client satisfies it.
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// AccountService handles account-level operations.
type AccountService struct {
	profiles   ProfileRepository
	identities IdentityDeleter
	logger     *slog.Logger
}

// NewAccountService returns an AccountService.
func NewAccountService(profiles ProfileRepository, identities IdentityDeleter, logger *slog.Logger) *AccountService {
	return &AccountService{profiles: profiles, identities: identities, logger: logger}
}

// DeleteAccount removes the user's data first and the identity last, so a failure
// leaves an identity that can retry the deletion.
func (s *AccountService) DeleteAccount(ctx context.Context, uid string) error {
	if err := s.profiles.DeleteUserData(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete user data: %w", err)
	}
	if s.identities != nil {
		if err := s.identities.DeleteUser(ctx, uid); err != nil {
			return fmt.Errorf("failed to delete identity: %w", err)
		}
	}
	s.logger.Info("Account deleted", "owner_id", uid)
	return nil
}
