package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/internal/repository"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type paymentSessionRepository interface {
	FindByID(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	CreateOrGetPending(ctx context.Context, candidate *models.PaymentSession) (*models.PaymentSession, bool, error)
	MarkStatus(ctx context.Context, sessionID string, status models.PaymentStatus) error
	CompleteWithUnlock(ctx context.Context, sessionID string, completedAt time.Time) (*models.PaymentSession, error)
}

type paymentResourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

type accessEvaluator interface {
	Evaluate(ctx context.Context, user *models.User, resource *models.Resource) (dto.AccessResult, error)
}

// PricingPolicy quotes the price of unlocking a resource.
type PricingPolicy interface {
	Quote(resource *models.Resource) (amount float64, currency string)
}

// FlatPricing charges the same amount for every resource.
type FlatPricing struct {
	Amount   float64
	Currency string
}

// Quote implements PricingPolicy.
func (p FlatPricing) Quote(*models.Resource) (float64, string) {
	return p.Amount, p.Currency
}

// PaymentConfig bounds session lifetime and provider calls.
type PaymentConfig struct {
	SessionTTL      time.Duration
	ProviderTimeout time.Duration
}

// PaymentService drives payment sessions from PENDING to exactly one terminal state.
type PaymentService struct {
	identity  identityResolver
	resources paymentResourceRepository
	access    accessEvaluator
	sessions  paymentSessionRepository
	provider  PaymentProvider
	pricing   PricingPolicy
	metrics   *MetricsService
	logger    *zap.Logger
	config    PaymentConfig
	now       func() time.Time
	newID     func(time.Time) string
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(identity identityResolver, resources paymentResourceRepository, access accessEvaluator, sessions paymentSessionRepository, provider PaymentProvider, pricing PricingPolicy, metrics *MetricsService, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricing == nil {
		pricing = FlatPricing{Amount: 10.00, Currency: "USD"}
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = time.Hour
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 5 * time.Second
	}
	return &PaymentService{
		identity:  identity,
		resources: resources,
		access:    access,
		sessions:  sessions,
		provider:  provider,
		pricing:   pricing,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newSessionID,
	}
}

func newSessionID(ts time.Time) string {
	return "ps_" + strings.ToLower(ulid.MustNew(ulid.Timestamp(ts), rand.Reader).String())
}

// Initiate opens a payment session for a locked cross-college resource. A live PENDING session for
// the same user and resource is returned instead of creating a second one.
func (s *PaymentService) Initiate(ctx context.Context, userID, resourceID string) (*models.PaymentSession, error) {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Internal(err, "failed to load resource")
	}

	verdict, err := s.access.Evaluate(ctx, user, resource)
	if err != nil {
		return nil, err
	}
	switch {
	case !verdict.CanAccess:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	case !verdict.RequiresPayment:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment not required")
	case verdict.IsUnlocked:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "resource already unlocked")
	}

	now := s.now()
	amount, currency := s.pricing.Quote(resource)
	candidate := &models.PaymentSession{
		SessionID:  s.newID(now),
		UserID:     user.ID,
		ResourceID: resource.ID,
		Amount:     amount,
		Currency:   currency,
		Status:     models.PaymentStatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.SessionTTL),
	}
	session, reused, err := s.sessions.CreateOrGetPending(ctx, candidate)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create payment session")
	}

	if reused {
		s.metrics.RecordPaymentOutcome(PaymentOutcomeReused)
	} else {
		s.metrics.RecordPaymentOutcome(PaymentOutcomeInitiated)
	}
	s.logger.Info("payment session opened",
		zap.String("session_id", session.SessionID),
		zap.String("user_id", user.ID),
		zap.String("resource_id", resource.ID),
		zap.Bool("reused", reused))
	return session, nil
}

// Verify settles a session. It never returns an error; every failure is reported in the result.
// A PENDING session past its deadline always ends EXPIRED regardless of the provider.
func (s *PaymentService) Verify(ctx context.Context, sessionID string) dto.PaymentResult {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordPaymentOutcome(PaymentOutcomeNotFound)
			return dto.PaymentResult{Success: false, Message: "payment session not found"}
		}
		s.logger.Error("failed to load payment session", zap.String("session_id", sessionID), zap.Error(err))
		return s.unavailable("")
	}

	if session.Status.IsTerminal() {
		return s.terminalResult(session)
	}
	if session.ExpiredAt(s.now()) {
		return s.expire(ctx, session)
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	start := time.Now()
	approved, err := s.provider.VerifyTransaction(providerCtx, session.SessionID)
	cancel()
	s.metrics.ObserveProviderCall(time.Since(start))

	if err != nil || !approved {
		if err != nil {
			s.logger.Warn("payment provider verification failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return s.fail(ctx, session)
	}

	completedAt := s.now()
	if session.ExpiredAt(completedAt) {
		return s.expire(ctx, session)
	}

	completed, err := s.sessions.CompleteWithUnlock(ctx, session.SessionID, completedAt)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotPending) {
			return s.reload(ctx, session)
		}
		s.logger.Error("failed to complete payment session", zap.String("session_id", sessionID), zap.Error(err))
		return s.unavailable(models.PaymentStatusPending)
	}

	s.metrics.RecordPaymentOutcome(PaymentOutcomeCompleted)
	s.logger.Info("payment completed",
		zap.String("session_id", completed.SessionID),
		zap.String("user_id", completed.UserID),
		zap.String("resource_id", completed.ResourceID),
		zap.Float64("amount", completed.Amount))
	amount := completed.Amount
	return dto.PaymentResult{Success: true, Message: "payment completed, resource unlocked", Status: models.PaymentStatusCompleted, Amount: &amount}
}

// VerifyForUser is Verify restricted to sessions owned by userID. Sessions of other users are
// reported as not found.
func (s *PaymentService) VerifyForUser(ctx context.Context, userID, sessionID string) dto.PaymentResult {
	if _, err := s.Session(ctx, userID, sessionID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordPaymentOutcome(PaymentOutcomeNotFound)
			return dto.PaymentResult{Success: false, Message: "payment session not found"}
		}
		s.logger.Error("failed to load payment session", zap.String("session_id", sessionID), zap.Error(err))
		return s.unavailable("")
	}
	return s.Verify(ctx, sessionID)
}

// Session returns a session owned by userID.
func (s *PaymentService) Session(ctx context.Context, userID, sessionID string) (*models.PaymentSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment session not found")
		}
		return nil, appErrors.Internal(err, "failed to load payment session")
	}
	if session.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment session not found")
	}
	return session, nil
}

func (s *PaymentService) expire(ctx context.Context, session *models.PaymentSession) dto.PaymentResult {
	if err := s.sessions.MarkStatus(ctx, session.SessionID, models.PaymentStatusExpired); err != nil {
		if errors.Is(err, repository.ErrSessionNotPending) {
			return s.reload(ctx, session)
		}
		s.logger.Error("failed to expire payment session", zap.String("session_id", session.SessionID), zap.Error(err))
		return s.unavailable(models.PaymentStatusPending)
	}
	s.metrics.RecordPaymentOutcome(PaymentOutcomeExpired)
	return dto.PaymentResult{Success: false, Message: "payment session expired", Status: models.PaymentStatusExpired}
}

func (s *PaymentService) fail(ctx context.Context, session *models.PaymentSession) dto.PaymentResult {
	if err := s.sessions.MarkStatus(ctx, session.SessionID, models.PaymentStatusFailed); err != nil {
		if errors.Is(err, repository.ErrSessionNotPending) {
			return s.reload(ctx, session)
		}
		s.logger.Error("failed to mark payment session failed", zap.String("session_id", session.SessionID), zap.Error(err))
		return s.unavailable(models.PaymentStatusPending)
	}
	s.metrics.RecordPaymentOutcome(PaymentOutcomeFailed)
	return dto.PaymentResult{Success: false, Message: "payment verification failed", Status: models.PaymentStatusFailed}
}

// reload reports the state written by a concurrent verifier.
func (s *PaymentService) reload(ctx context.Context, session *models.PaymentSession) dto.PaymentResult {
	current, err := s.sessions.FindByID(ctx, session.SessionID)
	if err != nil {
		s.logger.Error("failed to reload payment session", zap.String("session_id", session.SessionID), zap.Error(err))
		return s.unavailable("")
	}
	return s.terminalResult(current)
}

// unavailable answers a verification that hit a storage failure. Nothing was settled; status is
// PENDING when the session is known to still be pending and empty when it could not be read.
func (s *PaymentService) unavailable(status models.PaymentStatus) dto.PaymentResult {
	s.metrics.RecordPaymentOutcome(PaymentOutcomeError)
	return dto.PaymentResult{Success: false, Message: "payment verification unavailable, try again", Status: status}
}

func (s *PaymentService) terminalResult(session *models.PaymentSession) dto.PaymentResult {
	switch session.Status {
	case models.PaymentStatusCompleted:
		s.metrics.RecordPaymentOutcome(PaymentOutcomeAlreadyCompleted)
		amount := session.Amount
		return dto.PaymentResult{Success: true, Message: "payment already completed", Status: session.Status, Amount: &amount}
	case models.PaymentStatusExpired:
		s.metrics.RecordPaymentOutcome(PaymentOutcomeExpired)
		return dto.PaymentResult{Success: false, Message: "payment session expired", Status: session.Status}
	case models.PaymentStatusFailed:
		s.metrics.RecordPaymentOutcome(PaymentOutcomeFailed)
		return dto.PaymentResult{Success: false, Message: "payment verification failed", Status: session.Status}
	default:
		return dto.PaymentResult{Success: false, Message: fmt.Sprintf("payment session is %s", strings.ToLower(string(session.Status))), Status: session.Status}
	}
}
