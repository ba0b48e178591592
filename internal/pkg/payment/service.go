package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/metrics"
)

// ExpireAfter is the conservative "assume lost" age for an UNPAID
// transaction whose provider query fails.
const ExpireAfter = 30 * time.Minute

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownReference = errors.New("unknown merchant reference")
)

// CallbackPayload is the inbound webhook body.
type CallbackPayload struct {
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	PaidAt      int64  `json:"paid_at"`
	Amount      int64  `json:"amount"`
}

// Service reconciles local payment state against the provider via webhook
// delivery, client-initiated polling and an age-based local expiry fallback.
type Service struct {
	repo       Repository
	provider   Provider
	privateKey string
	now        func() time.Time
}

// NewService creates a payment service from injected collaborators.
func NewService(repo Repository, provider Provider, privateKey string) *Service {
	return &Service{repo: repo, provider: provider, privateKey: privateKey, now: time.Now}
}

// NewServiceFromDB creates a payment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, provider Provider, privateKey string) *Service {
	return NewService(NewRepository(db), provider, privateKey)
}

// CreateInvoice opens a provider-side payment request and stores the local
// UNPAID transaction under a fresh merchant reference.
func (s *Service) CreateInvoice(email, message, attachment string, amount int64) (*models.PaymentTransaction, error) {
	merchantRef := "MF-" + strings.ToUpper(uuid.NewString()[:12])

	providerTx, err := s.provider.CreateTransaction(merchantRef, email, amount)
	if err != nil {
		return nil, fmt.Errorf("creating provider transaction: %w", err)
	}

	tx := &models.PaymentTransaction{
		MerchantRef: merchantRef,
		Email:       email,
		Message:     message,
		Attachment:  attachment,
		Amount:      amount,
		Status:      models.PaymentStatusUnpaid,
		CheckoutURL: providerTx.CheckoutURL,
	}
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("storing transaction: %w", err)
	}

	logrus.WithField("merchant_ref", merchantRef).Info("payment: invoice created")
	return tx, nil
}

// HandleWebhook processes an inbound provider callback. The signature is
// verified before any field is trusted; redelivery for an already-terminal
// transaction is a no-op.
func (s *Service) HandleWebhook(rawBody []byte, signature string) error {
	if !VerifyCallbackSignature(rawBody, signature, s.privateKey) {
		metrics.Get().WebhookResults.WithLabelValues("invalid_signature").Inc()
		return ErrInvalidSignature
	}

	var payload CallbackPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.Get().WebhookResults.WithLabelValues("malformed").Inc()
		return fmt.Errorf("decoding callback: %w", err)
	}

	tx, err := s.repo.GetByMerchantRef(payload.MerchantRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.Get().WebhookResults.WithLabelValues("unknown_ref").Inc()
			return ErrUnknownReference
		}
		return err
	}
	if tx.IsTerminal() {
		// Idempotent: repeated deliveries change nothing.
		metrics.Get().WebhookResults.WithLabelValues("duplicate").Inc()
		return nil
	}

	status := normalizeStatus(payload.Status)
	if status == models.PaymentStatusUnpaid {
		metrics.Get().WebhookResults.WithLabelValues("noop").Inc()
		return nil
	}

	var paidAt *time.Time
	if status == models.PaymentStatusPaid {
		at := s.now()
		if payload.PaidAt > 0 {
			at = time.Unix(payload.PaidAt, 0)
		}
		paidAt = &at
	}

	applied, err := s.repo.TransitionFromUnpaid(tx.MerchantRef, status, paidAt)
	if err != nil {
		return fmt.Errorf("applying transition: %w", err)
	}
	if !applied {
		// Lost the race against another delivery; the other one won.
		metrics.Get().WebhookResults.WithLabelValues("duplicate").Inc()
		return nil
	}

	metrics.Get().WebhookResults.WithLabelValues(strings.ToLower(status)).Inc()
	if status == models.PaymentStatusPaid {
		return s.enqueueForReview(tx)
	}
	return nil
}

// Reconcile is the client-initiated polling path: it queries the provider
// and updates local state to match. Provider errors degrade to the last
// known local status unless the transaction aged past ExpireAfter while
// still UNPAID, which forces EXPIRED.
func (s *Service) Reconcile(merchantRef string) (*models.PaymentTransaction, error) {
	tx, err := s.repo.GetByMerchantRef(merchantRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownReference
		}
		return nil, err
	}
	if tx.IsTerminal() {
		return tx, nil
	}

	providerTx, err := s.provider.GetTransactionDetail(merchantRef)
	if err != nil {
		logrus.WithField("merchant_ref", merchantRef).
			Warnf("payment: provider query failed: %v", err)
		if tx.Age(s.now()) > ExpireAfter {
			if _, terr := s.repo.TransitionFromUnpaid(merchantRef, models.PaymentStatusExpired, nil); terr != nil {
				return tx, terr
			}
			tx.Status = models.PaymentStatusExpired
			metrics.Get().Reconciliations.WithLabelValues("expired").Inc()
			return tx, nil
		}
		metrics.Get().Reconciliations.WithLabelValues("degraded").Inc()
		return tx, nil
	}

	status := normalizeStatus(providerTx.Status)
	if status == models.PaymentStatusUnpaid {
		metrics.Get().Reconciliations.WithLabelValues("unpaid").Inc()
		return tx, nil
	}

	paidAt := providerTx.PaidAt
	if status == models.PaymentStatusPaid && paidAt == nil {
		at := s.now()
		paidAt = &at
	}

	applied, err := s.repo.TransitionFromUnpaid(merchantRef, status, paidAt)
	if err != nil {
		return tx, fmt.Errorf("applying transition: %w", err)
	}
	tx.Status = status
	tx.PaidAt = paidAt
	metrics.Get().Reconciliations.WithLabelValues(strings.ToLower(status)).Inc()

	if applied && status == models.PaymentStatusPaid {
		return tx, s.enqueueForReview(tx)
	}
	return tx, nil
}

// ExpireStale walks UNPAID transactions older than the cutoff and marks them
// EXPIRED. Used by the hourly cleanup job.
func (s *Service) ExpireStale(olderThan time.Duration) (int, error) {
	stale, err := s.repo.StaleUnpaid(s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, tx := range stale {
		applied, err := s.repo.TransitionFromUnpaid(tx.MerchantRef, models.PaymentStatusExpired, nil)
		if err != nil {
			logrus.WithField("merchant_ref", tx.MerchantRef).
				Warnf("payment: stale expiry failed: %v", err)
			continue
		}
		if applied {
			expired++
		}
	}
	return expired, nil
}

// enqueueForReview hands a paid message to the admin review queue. Paid
// posts are never auto-posted.
func (s *Service) enqueueForReview(tx *models.PaymentTransaction) error {
	post := &models.PaidPost{
		MerchantRef: tx.MerchantRef,
		MessageText: tx.Message,
		Email:       tx.Email,
		MediaURL:    tx.Attachment,
		TweetStatus: models.TweetStatusPending,
	}
	if err := s.repo.CreatePaidPost(post); err != nil {
		return fmt.Errorf("queueing paid post: %w", err)
	}
	logrus.WithField("merchant_ref", tx.MerchantRef).Info("payment: paid post queued for review")
	return nil
}

func normalizeStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case models.PaymentStatusPaid:
		return models.PaymentStatusPaid
	case models.PaymentStatusExpired:
		return models.PaymentStatusExpired
	case models.PaymentStatusFailed:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusUnpaid
	}
}
