package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Billing event types handled by the webhook.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// OwnerMetadataKey carries the user id on checkout sessions and subscriptions.
const OwnerMetadataKey = "owner_id"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// BillingLedger records processed events and dead letters.
type BillingLedger interface {
	// MarkProcessed records eventID and reports false if it was already recorded.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	AddDeadLetter(ctx context.Context, eventID, eventType string, payload []byte, lastErr string) error
	PendingDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error)
	ResolveDeadLetter(ctx context.Context, id int64) error
	FailDeadLetter(ctx context.Context, id int64, lastErr string, abandon bool) error
	// AdvanceSubscription moves the applied-event marker of subscriptionID to
	// (created, rank) and reports false when a later event was already applied.
	AdvanceSubscription(ctx context.Context, subscriptionID string, created int64, rank int) (bool, error)
}

// CheckoutSessions creates hosted checkout pages. *session.Client from stripe-go satisfies it.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// BillingOptions configures BillingService.
type BillingOptions struct {
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	MaxAttempts   int
	Retry         common.RetryOptions
}

// BillingService opens checkout sessions and applies payment processor events to
// the plan field of user profiles.
type BillingService struct {
	profiles ProfileRepository
	ledger   BillingLedger
	checkout CheckoutSessions
	opts     BillingOptions
	logger   *slog.Logger
}

// NewBillingService wires billing. checkout may be nil when no secret key is configured.
func NewBillingService(profiles ProfileRepository, ledger BillingLedger, checkout CheckoutSessions, opts BillingOptions, logger *slog.Logger) *BillingService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &BillingService{
		profiles: profiles,
		ledger:   ledger,
		checkout: checkout,
		opts:     opts,
		logger:   logger,
	}
}

// CreateCheckoutSession opens a subscription checkout for profile and returns its URL.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, profile models.UserProfile) (string, error) {
	if s.checkout == nil || s.opts.PriceID == "" {
		return "", fmt.Errorf("%w: stripe.secret_key and stripe.price_id", common.ErrMissingConfig)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(profile.ID),
		SuccessURL:        stripe.String(s.opts.SuccessURL),
		CancelURL:         stripe.String(s.opts.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.opts.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{OwnerMetadataKey: profile.ID},
		},
	}
	params.Context = ctx
	params.AddMetadata(OwnerMetadataKey, profile.ID)
	if profile.StripeCustomerID != "" {
		params.Customer = stripe.String(profile.StripeCustomerID)
	} else if profile.Email != "" {
		params.CustomerEmail = stripe.String(profile.Email)
	}

	var sess *stripe.CheckoutSession
	err := common.WithRetry(ctx, func() error {
		var err error
		sess, err = s.checkout.New(params)
		return err
	}, s.opts.Retry)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies one event. Only a signature failure is returned
// to the caller; processing failures go to the dead-letter queue.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	logger := s.logger.With("event_id", event.ID, "event_type", string(event.Type))

	fresh, err := s.ledger.MarkProcessed(ctx, event.ID, string(event.Type))
	if err != nil {
		logger.Error("Failed to record billing event", "error", err)
		s.deadLetter(ctx, event.ID, string(event.Type), payload, err)
		return nil
	}
	if !fresh {
		logger.Info("Duplicate billing event ignored")
		return nil
	}

	if err := s.Apply(ctx, event); err != nil {
		logger.Error("Billing event failed, queued for retry", "error", err)
		s.deadLetter(ctx, event.ID, string(event.Type), payload, err)
		return nil
	}

	logger.Info("Billing event applied")
	return nil
}

func (s *BillingService) deadLetter(ctx context.Context, eventID, eventType string, payload []byte, cause error) {
	if err := s.ledger.AddDeadLetter(ctx, eventID, eventType, payload, cause.Error()); err != nil {
		s.logger.Error("Failed to store dead letter",
			"event_id", eventID,
			"event_type", eventType,
			"cause", cause,
			"error", err)
	}
}

// Apply maps one event onto the profile store. Unhandled types are ignored.
func (s *BillingService) Apply(ctx context.Context, event stripe.Event) error {
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}

	switch string(event.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to decode checkout session: %w", err)
		}
		ownerID := sess.ClientReferenceID
		if ownerID == "" {
			ownerID = sess.Metadata[OwnerMetadataKey]
		}
		if ownerID == "" {
			return fmt.Errorf("checkout session %s has no owner", sess.ID)
		}
		if sess.Customer == nil || sess.Customer.ID == "" {
			return nil
		}
		return s.profiles.LinkCustomer(ctx, ownerID, sess.Customer.ID)

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		plan, change := PlanForSubscription(string(event.Type), sub.Status)
		if !change {
			return nil
		}
		ownerID, err := s.resolveOwner(ctx, &sub)
		if err != nil {
			return err
		}
		if sub.ID != "" {
			current, err := s.ledger.AdvanceSubscription(ctx, sub.ID, event.Created, eventRank(string(event.Type)))
			if err != nil {
				return fmt.Errorf("failed to order event for subscription %s: %w", sub.ID, err)
			}
			if !current {
				// a later event for this subscription already set the plan
				s.logger.Info("Stale billing event skipped",
					"event_id", event.ID,
					"subscription_id", sub.ID,
					"created", event.Created)
				return nil
			}
		}
		return s.profiles.SetPlan(ctx, ownerID, plan, sub.ID)
	}
	return nil
}

// PlanForSubscription maps a subscription event onto a plan. The second result is
// false when the status leaves the plan untouched.
func PlanForSubscription(eventType string, status stripe.SubscriptionStatus) (models.Plan, bool) {
	if eventType == EventSubscriptionDeleted {
		return models.PlanFree, true
	}
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.PlanPremium, true
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return models.PlanFree, true
	}
	return "", false
}

// eventRank orders events created in the same second. A deletion is final, so it
// outranks any update with the same timestamp.
func eventRank(eventType string) int {
	if eventType == EventSubscriptionDeleted {
		return 1
	}
	return 0
}

func (s *BillingService) resolveOwner(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if ownerID := sub.Metadata[OwnerMetadataKey]; ownerID != "" {
		return ownerID, nil
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return "", fmt.Errorf("subscription %s has no owner: %w", sub.ID, common.ErrNotFound)
	}
	profile, err := s.profiles.FindByCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		return "", fmt.Errorf("no profile for customer %s: %w", sub.Customer.ID, err)
	}
	return profile.ID, nil
}

// RetryReport summarizes one redelivery pass.
type RetryReport struct {
	Resolved  int
	Failed    int
	Abandoned int
}

// RetryDeadLetters replays pending dead letters once. Letters reaching the attempt
// ceiling are abandoned.
func (s *BillingService) RetryDeadLetters(ctx context.Context) (RetryReport, error) {
	var report RetryReport

	letters, err := s.ledger.PendingDeadLetters(ctx, 100)
	if err != nil {
		return report, fmt.Errorf("failed to load dead letters: %w", err)
	}

	for _, letter := range letters {
		logger := s.logger.With("event_id", letter.EventID, "event_type", letter.EventType)

		applyErr := s.replay(ctx, letter)
		if applyErr == nil {
			if err := s.ledger.ResolveDeadLetter(ctx, letter.ID); err != nil {
				return report, fmt.Errorf("failed to resolve dead letter %d: %w", letter.ID, err)
			}
			report.Resolved++
			logger.Info("Dead letter resolved", "attempts", letter.Attempts+1)
			continue
		}

		abandon := letter.Attempts+1 >= s.opts.MaxAttempts
		if err := s.ledger.FailDeadLetter(ctx, letter.ID, applyErr.Error(), abandon); err != nil {
			return report, fmt.Errorf("failed to update dead letter %d: %w", letter.ID, err)
		}
		if abandon {
			report.Abandoned++
			logger.Error("Dead letter abandoned", "attempts", letter.Attempts+1, "error", applyErr)
		} else {
			report.Failed++
			logger.Warn("Dead letter retry failed", "attempts", letter.Attempts+1, "error", applyErr)
		}
	}
	return report, nil
}

func (s *BillingService) replay(ctx context.Context, letter models.DeadLetter) error {
	var event stripe.Event
	if err := json.Unmarshal(letter.Payload, &event); err != nil {
		return fmt.Errorf("corrupt payload: %w", err)
	}
	return s.Apply(ctx, event)
}

// ScheduleRetries registers RetryDeadLetters on scheduler on a cron schedule.
func (s *BillingService) ScheduleRetries(scheduler *Scheduler, spec string, timeout time.Duration) error {
	return scheduler.Add("billing-retry", spec, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := s.RetryDeadLetters(ctx)
		return err
	})
}
