package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ms-songrequest/internal/config"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// DonationPublisher feeds card donations into the same pipeline as
// platform sticker events.
type DonationPublisher interface {
	PublishDonationEvent(event models.DonationEvent) error
}

// Service wraps Stripe Checkout for direct card support. A completed
// checkout session becomes a DonationEvent, so card donations earn
// entitlement tickets under the exact same rules as stickers.
type Service struct {
	cfg       config.StripeConfig
	client    *client.API
	publisher DonationPublisher
	log       *logger.Logger
}

func NewService(cfg config.StripeConfig, publisher DonationPublisher, log *logger.Logger) (*Service, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY is not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &Service{
		cfg:       cfg,
		client:    sc,
		publisher: publisher,
		log:       log,
	}, nil
}

// CheckoutRequest is the body of a support checkout call.
type CheckoutRequest struct {
	LiveID   string `json:"liveId"`
	DonorID  string `json:"donorId"`
	Nickname string `json:"nickname"`
	// Amount is in the currency's smallest unit, e.g. cents.
	Amount int64 `json:"amount"`
}

// CheckoutSession is returned to the client so it can redirect the donor.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckoutSession opens a Stripe Checkout session for a one-off
// support donation. Donor identity rides along in session metadata so the
// webhook can route the completed payment.
func (s *Service) CreateCheckoutSession(req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, errors.New("donation amount must be positive")
	}
	if req.DonorID == "" || req.Nickname == "" {
		return nil, errors.New("donor identity is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Stream support from %s", req.Nickname)),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.AddMetadata("live_id", req.LiveID)
	params.AddMetadata("donor_id", req.DonorID)
	params.AddMetadata("nickname", req.Nickname)
	params.AddMetadata("amount", strconv.FormatInt(req.Amount, 10))

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, err
	}

	s.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for donor %s (%d %s)",
		sess.ID, req.DonorID, req.Amount, s.cfg.Currency))
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// WebhookError carries an HTTP status alongside a client-safe message.
type WebhookError struct {
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleWebhook verifies a Stripe webhook and, for completed checkout
// sessions, publishes the matching donation event.
func (s *Service) HandleWebhook(r *http.Request) error {
	if s.cfg.WebhookSecret == "" {
		s.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), s.cfg.WebhookSecret, opts)
	if err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.log.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			s.log.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return &WebhookError{
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}
		return s.completeSession(sess)

	case "checkout.session.expired":
		s.log.Info("WEBHOOK", "Checkout session expired without payment")

	default:
		s.log.Debug("WEBHOOK", fmt.Sprintf("Ignoring event type: %s", event.Type))
	}

	return nil
}

func (s *Service) completeSession(sess stripe.CheckoutSession) error {
	donorID := sess.Metadata["donor_id"]
	if donorID == "" {
		s.log.Error("WEBHOOK", "Checkout session has no donor_id in metadata")
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid session data",
			InternalError: "Checkout session has no donor_id in metadata",
		}
	}

	donation := models.DonationEvent{
		LiveID:   sess.Metadata["live_id"],
		DonorID:  donorID,
		Nickname: sess.Metadata["nickname"],
		Amount:   int(sess.AmountTotal),
		Combo:    1,
	}

	if err := s.publisher.PublishDonationEvent(donation); err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("Failed to publish donation for session %s: %v", sess.ID, err))
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to process payment",
			InternalError: fmt.Sprintf("Failed to publish donation for session %s: %v", sess.ID, err),
			OriginalErr:   err,
		}
	}

	s.log.Info("WEBHOOK", fmt.Sprintf("Donation of %d recorded for donor %s (session %s)",
		sess.AmountTotal, donorID, sess.ID))
	return nil
}
