package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/cache"
	"github.com/accessibility-build/platform/internal/pkg/metrics/counter"
)

const (
	CacheKeyAdmin   = "statistics:admin"
	CacheExpiration = 5 * time.Minute
)

// AdminStats is the dashboard summary shown to admins.
type AdminStats struct {
	TotalUsers        int64               `json:"total_users"`
	PremiumUsers      int64               `json:"premium_users"`
	CreditsSold30d    int64               `json:"credits_sold_30d"`
	TrialUses24h      int64               `json:"trial_uses_24h"`
	TrialAddresses24h int64               `json:"trial_addresses_24h"`
	ToolUsesToday     map[string]int64    `json:"tool_uses_today"`
	ToolUses30d       map[string]int64    `json:"tool_uses_30d"`
	SignupsLast30d    []models.DailyStats `json:"signups_last_30d"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// PurchaseSummer reports purchased credits; credits.Service satisfies it.
type PurchaseSummer interface {
	PurchasedSince(ctx context.Context, since time.Time) (int64, error)
}

// Service computes AdminStats and caches them in Redis.
type Service struct {
	users     repository.UserRepository
	trials    repository.TrialUsageRepository
	toolUsage repository.ToolUsageRepository
	purchases PurchaseSummer
	now       func() time.Time
}

// NewService creates a statistics service.
func NewService(repos *repository.Repositories, purchases PurchaseSummer) *Service {
	return &Service{
		users:     repos.User,
		trials:    repos.TrialUsage,
		toolUsage: repos.ToolUsage,
		purchases: purchases,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns cached stats, recomputing them when the cache is cold.
func (s *Service) Get(ctx context.Context) (*AdminStats, error) {
	raw, err := cache.Get(CacheKeyAdmin)
	if err == nil {
		var stats AdminStats
		if jerr := json.Unmarshal([]byte(raw), &stats); jerr == nil {
			return &stats, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("[Statistics] cache read failed")
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the stats and stores them for CacheExpiration.
func (s *Service) Refresh(ctx context.Context) (*AdminStats, error) {
	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(CacheKeyAdmin, payload, CacheExpiration); err != nil {
		log.Warn().Err(err).Msg("[Statistics] cache write failed")
	}
	return stats, nil
}

// Invalidate drops the cached stats.
func (s *Service) Invalidate() error {
	return cache.Delete(CacheKeyAdmin)
}

func (s *Service) compute(ctx context.Context) (*AdminStats, error) {
	now := s.now()
	today := now.Format("2006-01-02")
	monthAgo := now.AddDate(0, 0, -30)

	stats := &AdminStats{GeneratedAt: now}
	var err error

	if stats.TotalUsers, err = s.users.Count(); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if stats.PremiumUsers, err = s.users.CountByPlan(models.PlanPremium); err != nil {
		return nil, fmt.Errorf("count premium users: %w", err)
	}
	if stats.TrialUses24h, err = s.trials.CountAllSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, fmt.Errorf("count trial uses: %w", err)
	}
	if stats.TrialAddresses24h, err = s.trials.CountDistinctIPsSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, fmt.Errorf("count trial addresses: %w", err)
	}
	if s.purchases != nil {
		if stats.CreditsSold30d, err = s.purchases.PurchasedSince(ctx, monthAgo); err != nil {
			return nil, fmt.Errorf("sum purchases: %w", err)
		}
	}
	if stats.ToolUses30d, err = s.toolUsage.TotalsSince(monthAgo.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("tool usage totals: %w", err)
	}
	if stats.ToolUses30d == nil {
		stats.ToolUses30d = map[string]int64{}
	}

	stats.ToolUsesToday = map[string]int64{}
	rows, err := s.toolUsage.ListByDay(today)
	if err != nil {
		return nil, fmt.Errorf("tool usage today: %w", err)
	}
	for _, r := range rows {
		stats.ToolUsesToday[r.Tool] = r.Uses
	}
	// Counts still buffered in Redis have not reached the table yet.
	if pending, perr := counter.Pending(today); perr == nil {
		for tool, n := range pending {
			stats.ToolUsesToday[tool] += n
			stats.ToolUses30d[tool] += n
		}
	}

	if signups, serr := s.users.GetDailyStats(monthAgo, now); serr == nil {
		stats.SignupsLast30d = signups
	} else {
		log.Warn().Err(serr).Msg("[Statistics] daily signups unavailable")
	}

	return stats, nil
}
