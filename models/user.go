package models

import (
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// Preferences are the per-user display settings.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
	Currency string `json:"currency"`
}

// DefaultPreferences is applied to new profiles and to guests.
var DefaultPreferences = Preferences{
	Theme:    "system",
	Language: "en",
	Currency: "USD",
}

var (
	validThemes    = []string{"light", "dark", "system"}
	validLanguages = []string{"en", "pt", "es"}
)

// Validate checks theme, language and currency.
func (p Preferences) Validate() error {
	if !contains(validThemes, p.Theme) {
		return invalid("theme", "must be one of %s", strings.Join(validThemes, ", "))
	}
	if !contains(validLanguages, p.Language) {
		return invalid("language", "must be one of %s", strings.Join(validLanguages, ", "))
	}
	if _, err := currency.ParseISO(p.Currency); err != nil {
		return invalid("currency", "%q is not an ISO-4217 code", p.Currency)
	}
	return nil
}

// Merge overlays the non-empty fields of update on p.
func (p Preferences) Merge(update Preferences) Preferences {
	if update.Theme != "" {
		p.Theme = update.Theme
	}
	if update.Language != "" {
		p.Language = update.Language
	}
	if update.Currency != "" {
		p.Currency = strings.ToUpper(update.Currency)
	}
	return p
}

// UserProfile is the per-identity profile document. Plan is written only by billing.
type UserProfile struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Email                string      `json:"email"`
	Plan                 Plan        `json:"plan"`
	Preferences          Preferences `json:"preferences"`
	StripeCustomerID     string      `json:"-"`
	StripeSubscriptionID string      `json:"-"`
	CreatedAt            time.Time   `json:"createdAt"`
}

// ProfileUpdate is the user-editable part of a profile.
type ProfileUpdate struct {
	Name string `json:"name"`
}

// Validate requires a name.
func (u ProfileUpdate) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalid("name", "is required")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
