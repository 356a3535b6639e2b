package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledgerly/backend/common"
	"ledgerly/backend/models"
)

// PreferencesService is the one place preferences are read and written. Account
// preferences live on the profile document; guest preferences live in the guest's
// local storage namespace.
type PreferencesService struct {
	profiles ProfileRepository
	storage  LocalStorage
	defaults models.Preferences
}

// NewPreferencesService returns a service falling back to models.DefaultPreferences.
func NewPreferencesService(profiles ProfileRepository, storage LocalStorage) *PreferencesService {
	return &PreferencesService{
		profiles: profiles,
		storage:  storage,
		defaults: models.DefaultPreferences,
	}
}

// Defaults returns the preferences applied when nothing is stored.
func (s *PreferencesService) Defaults() models.Preferences {
	return s.defaults
}

// Get returns the effective preferences for session.
func (s *PreferencesService) Get(ctx context.Context, session Session) (models.Preferences, error) {
	switch {
	case session.IsAuthenticated():
		profile, err := s.profiles.Get(ctx, session.Identity.UID)
		if errors.Is(err, common.ErrNotFound) {
			return s.defaults, nil
		}
		if err != nil {
			return models.Preferences{}, err
		}
		return s.defaults.Merge(profile.Preferences), nil
	case session.GuestSessionID != "":
		raw, ok, err := s.storage.Get(ctx, session.GuestSessionID, GuestPreferencesKey)
		if err != nil {
			return models.Preferences{}, err
		}
		if !ok {
			return s.defaults, nil
		}
		var stored models.Preferences
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return s.defaults, nil
		}
		return s.defaults.Merge(stored), nil
	}
	return s.defaults, nil
}

// Update merges update over the current preferences, validates, and stores them.
func (s *PreferencesService) Update(ctx context.Context, session Session, update models.Preferences) (models.Preferences, error) {
	current, err := s.Get(ctx, session)
	if err != nil {
		return models.Preferences{}, err
	}
	next := current.Merge(update)
	if err := next.Validate(); err != nil {
		return models.Preferences{}, err
	}

	switch {
	case session.IsAuthenticated():
		if err := s.profiles.UpdatePreferences(ctx, session.Identity.UID, next); err != nil {
			return models.Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
		}
	case session.GuestSessionID != "":
		data, err := json.Marshal(next)
		if err != nil {
			return models.Preferences{}, err
		}
		if err := s.storage.Set(ctx, session.GuestSessionID, GuestPreferencesKey, string(data)); err != nil {
			return models.Preferences{}, fmt.Errorf("failed to save guest preferences: %w", err)
		}
	default:
		return models.Preferences{}, common.ErrUnauthorized
	}
	return next, nil
}
