// Package credits is the prepaid credit ledger of signed-in users.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/entitlements"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var (
	ErrInsufficientCredits = errors.New("credits: insufficient balance")
	ErrInvalidAmount       = errors.New("credits: amount must be positive")
	ErrInvalidKind         = errors.New("credits: unknown transaction kind")
)

// PlanUpdater persists the derived plan of a user.
// repository.UserRepository satisfies it.
type PlanUpdater interface {
	UpdatePlan(id uint, plan string) error
}

// Service applies ledger rules on top of a Repository.
type Service struct {
	repo  Repository
	plans PlanUpdater
}

// NewService creates a credit service. plans may be nil.
func NewService(repo Repository, plans PlanUpdater) *Service {
	return &Service{repo: repo, plans: plans}
}

// GrantResult reports whether a grant changed the balance.
type GrantResult struct {
	Applied bool  `json:"applied"`
	Balance int64 `json:"balance"`
}

func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Grant adds amount credits. A repeated reference is a no-op, which makes
// provider webhook retries safe. An empty reference gets a random one.
func (s *Service) Grant(ctx context.Context, userID uint, amount int64, kind, reference, note string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	switch kind {
	case models.CreditKindPurchase, models.CreditKindAdminAdjustment, models.CreditKindRefund:
	default:
		return GrantResult{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	applied, balance, err := s.repo.Apply(ctx, &models.CreditTransaction{
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Reference: referenceOrRandom(kind, reference),
		Note:      truncate(note, 255),
	})
	if err != nil {
		return GrantResult{}, fmt.Errorf("grant credits: %w", err)
	}
	if applied {
		s.syncPlan(userID, balance)
	}
	return GrantResult{Applied: applied, Balance: balance}, nil
}

// Consume charges the credit cost of one tool invocation.
func (s *Service) Consume(ctx context.Context, userID uint, tool entitlements.Tool) (int64, error) {
	cost := int64(entitlements.CreditCost(tool))
	_, balance, err := s.repo.Apply(ctx, &models.CreditTransaction{
		UserID:    userID,
		Amount:    -cost,
		Kind:      models.CreditKindUsage,
		Reference: referenceOrRandom(models.CreditKindUsage, ""),
		Tool:      string(tool),
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return balance, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("consume credits: %w", err)
	}
	s.syncPlan(userID, balance)
	return balance, nil
}

// Adjust applies an admin correction of either sign.
func (s *Service) Adjust(ctx context.Context, userID uint, delta int64, note string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}
	_, balance, err := s.repo.Apply(ctx, &models.CreditTransaction{
		UserID:    userID,
		Amount:    delta,
		Kind:      models.CreditKindAdminAdjustment,
		Reference: referenceOrRandom(models.CreditKindAdminAdjustment, ""),
		Note:      truncate(note, 255),
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return balance, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("adjust credits: %w", err)
	}
	s.syncPlan(userID, balance)
	return balance, nil
}

// History returns the newest ledger entries first.
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}

// PurchasedSince sums purchased credits for the admin dashboard.
func (s *Service) PurchasedSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.SumByKindSince(ctx, models.CreditKindPurchase, since)
}

func (s *Service) syncPlan(userID uint, balance int64) {
	if s.plans == nil {
		return
	}
	plan := entitlements.PlanForBalance(balance)
	if err := s.plans.UpdatePlan(userID, string(plan)); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Str("plan", string(plan)).Msg("[Credits] failed to sync plan")
	}
}

func referenceOrRandom(kind, reference string) string {
	reference = strings.TrimSpace(reference)
	if reference != "" {
		return truncate(reference, 191)
	}
	return kind + ":" + uuid.NewString()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
