package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/lodgeworks/reserve/pkg/booking"
)

// Adapter-level error values.
var (
	ErrSignatureInvalid     = errors.New("webhook signature invalid")
	ErrDuplicateEvent       = errors.New("duplicate payment event")
	ErrRecordNotFound       = errors.New("payment record not found")
	ErrMalformedEvent       = errors.New("malformed payment event")
	ErrBookingNotPayable    = errors.New("booking not awaiting payment")
	ErrInvalidAdapterConfig = errors.New("invalid adapter config")
)

// Config carries the provider settings for hosted-redirect sessions and
// webhook verification.
type Config struct {
	Provider        string
	RedirectBaseURL string
	WebhookSecret   string
}

// Validate ensures the configuration contains sane values.
func (cfg Config) Validate() error {
	if cfg.Provider == "" {
		return fmt.Errorf("%w: provider name is required", ErrInvalidAdapterConfig)
	}
	if cfg.RedirectBaseURL == "" {
		return fmt.Errorf("%w: redirect base url is required", ErrInvalidAdapterConfig)
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook secret is required", ErrInvalidAdapterConfig)
	}
	return nil
}

// Adapter reconciles provider payment events into booking transitions.
// Bookings are confirmed only from verified webhooks, never from any
// client-originated call.
type Adapter struct {
	store    Store
	bookings BookingConfirmer
	cfg      Config
	nowFn    func() time.Time
	logger   *zap.Logger
}

// NewAdapter wires an Adapter.
func NewAdapter(store Store, bookings BookingConfirmer, cfg Config, now func() time.Time, logger *zap.Logger) (*Adapter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidAdapterConfig)
	}
	if bookings == nil {
		return nil, fmt.Errorf("%w: booking service dependency is nil", ErrInvalidAdapterConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidAdapterConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, bookings: bookings, cfg: cfg, nowFn: now, logger: logger}, nil
}

// InitiateResult carries the hosted-redirect URL the customer is sent to.
type InitiateResult struct {
	RedirectURL string
	ProviderRef string
}

// Initiate opens (or reuses) the payment session for a pending booking and
// returns the provider redirect URL. An empty provider selects the
// configured default.
func (adapter *Adapter) Initiate(ctx context.Context, bookingID, provider string) (InitiateResult, error) {
	if provider == "" {
		provider = adapter.cfg.Provider
	}
	record, err := adapter.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return InitiateResult{}, err
	}
	if record.Status != booking.BookingStatusPendingPayment {
		return InitiateResult{}, fmt.Errorf("%w: booking is %s", ErrBookingNotPayable, record.Status)
	}

	var result InitiateResult
	operationError := adapter.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payment, err := transactionStore.GetRecordByBooking(ctx, bookingID)
		if errors.Is(err, ErrRecordNotFound) {
			payment = Record{
				ID:          uuid.NewString(),
				BookingID:   bookingID,
				Provider:    provider,
				ProviderRef: uuid.NewString(),
				Status:      RecordStatusInitiated,
				AmountCents: record.TotalCents.Int64(),
				Currency:    record.Currency,
				CreatedAt:   adapter.nowFn(),
			}
			if err := transactionStore.CreateRecord(ctx, payment); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		result = InitiateResult{
			RedirectURL: adapter.redirectURL(payment.ProviderRef),
			ProviderRef: payment.ProviderRef,
		}
		return nil
	})
	if operationError != nil {
		return InitiateResult{}, operationError
	}
	return result, nil
}

func (adapter *Adapter) redirectURL(providerRef string) string {
	query := url.Values{"session": {providerRef}}
	return adapter.cfg.RedirectBaseURL + "/checkout?" + query.Encode()
}

// webhookEvent mirrors the provider's delivery payload.
type webhookEvent struct {
	EventID     string `json:"event_id"`
	Type        string `json:"type"`
	BookingID   string `json:"booking_id"`
	ProviderRef string `json:"provider_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// WebhookOutcome reports what a delivery did, for logging and the response.
type WebhookOutcome struct {
	EventID   string
	BookingID string
	Duplicate bool
	Confirmed bool
}

// HandleWebhook verifies, records, and applies one provider delivery. The
// signature check fails closed with no state touched; a replayed event id
// returns success without re-applying effects, since providers retry until
// they see a 2xx.
func (adapter *Adapter) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (WebhookOutcome, error) {
	if !VerifySignature([]byte(adapter.cfg.WebhookSecret), rawBody, signature) {
		adapter.logger.Warn("webhook signature rejected",
			zap.String("provider", adapter.cfg.Provider),
			zap.Int("payload_bytes", len(rawBody)))
		return WebhookOutcome{}, ErrSignatureInvalid
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return WebhookOutcome{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.EventID == "" || event.BookingID == "" || event.Type == "" {
		return WebhookOutcome{}, fmt.Errorf("%w: missing event id, type, or booking id", ErrMalformedEvent)
	}

	outcome := WebhookOutcome{EventID: event.EventID, BookingID: event.BookingID}
	operationError := adapter.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payment, err := transactionStore.GetRecordByBooking(ctx, event.BookingID)
		if err != nil {
			return err
		}
		insertErr := transactionStore.InsertEvent(ctx, Event{
			ID:              uuid.NewString(),
			PaymentRecordID: payment.ID,
			ProviderEventID: event.EventID,
			Type:            event.Type,
			AmountCents:     event.AmountCents,
			Currency:        event.Currency,
			Payload:         datatypes.JSON(rawBody),
			ReceivedAt:      adapter.nowFn(),
		})
		if errors.Is(insertErr, ErrDuplicateEvent) {
			outcome.Duplicate = true
			// A replay after a failed confirmation still needs to drive
			// the booking forward; ConfirmPayment is a no-op once done.
			outcome.Confirmed = payment.Status == RecordStatusCaptured
			return nil
		}
		if insertErr != nil {
			return insertErr
		}

		switch event.Type {
		case EventTypeCaptured:
			if event.AmountCents != payment.AmountCents || event.Currency != payment.Currency {
				adapter.logger.Warn("captured amount mismatch",
					zap.String("booking_id", event.BookingID),
					zap.Int64("expected_cents", payment.AmountCents),
					zap.Int64("received_cents", event.AmountCents))
				return transactionStore.UpdateRecordStatus(ctx, payment.ID, RecordStatusAmountMismatch)
			}
			if err := transactionStore.UpdateRecordStatus(ctx, payment.ID, RecordStatusCaptured); err != nil {
				return err
			}
			outcome.Confirmed = true
			return nil
		case EventTypeFailed:
			return transactionStore.UpdateRecordStatus(ctx, payment.ID, RecordStatusFailed)
		default:
			// Unknown event types are recorded but drive nothing.
			return nil
		}
	})
	if operationError != nil {
		return WebhookOutcome{}, operationError
	}

	if outcome.Confirmed {
		if err := adapter.bookings.ConfirmPayment(ctx, event.BookingID); err != nil {
			if errors.Is(err, booking.ErrPaymentWindowElapsed) || errors.Is(err, booking.ErrInvalidTransition) {
				// The booking can no longer be confirmed: the window
				// lapsed, the sweeper expired it, or an admin cancelled
				// it while the capture was in flight. The money is
				// captured and the event durable, so ack the provider
				// and leave the reconciliation to the refund flow.
				adapter.logger.Warn("capture arrived for unconfirmable booking",
					zap.String("booking_id", event.BookingID),
					zap.String("event_id", event.EventID),
					zap.String("reason", err.Error()))
				outcome.Confirmed = false
				return outcome, nil
			}
			return WebhookOutcome{}, err
		}
	}
	return outcome, nil
}
