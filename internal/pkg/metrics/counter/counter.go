package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/cache"
)

const (
	toolUsageKey = "tools:counters:usage"
	dayFormat    = "2006-01-02"
	fieldSep     = "|"
)

func field(day, tool string) string {
	return day + fieldSep + tool
}

// AddToolUse increments the pending counter for tool on the current UTC day.
func AddToolUse(tool string) error {
	ctx := context.Background()
	day := time.Now().UTC().Format(dayFormat)
	return cache.GetClient().HIncrBy(ctx, toolUsageKey, field(day, tool), 1).Err()
}

// Pending returns the not yet flushed counts of one day, per tool.
func Pending(day string) (map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, toolUsageKey).Result()
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for k, v := range data {
		d, tool, ok := strings.Cut(k, fieldSep)
		if !ok || d != day {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[tool] += n
	}
	return out, nil
}

// FlushAll drains the Redis hash and adds the counts to tool_usage_daily.
// The hash is moved with RENAME first, so increments that arrive during
// the flush land in a fresh hash and are not lost.
func FlushAll(repo repository.ToolUsageRepository) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", toolUsageKey, time.Now().UnixNano())
	if err := rdb.Rename(ctx, toolUsageKey, tmpKey).Err(); err != nil {
		// Nothing counted since the last flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	byDay := map[string]map[string]int64{}
	for k, v := range data {
		day, tool, ok := strings.Cut(k, fieldSep)
		if !ok || tool == "" {
			continue
		}
		inc, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || inc == 0 {
			continue
		}
		if byDay[day] == nil {
			byDay[day] = map[string]int64{}
		}
		byDay[day][tool] += inc
	}

	for day, counts := range byDay {
		if err := repo.AddCounts(day, counts); err != nil {
			// Put everything not yet written back so the next flush retries it.
			for d, c := range byDay {
				restore(ctx, d, c)
			}
			rdb.Del(ctx, tmpKey)
			return fmt.Errorf("flush tool usage for %s: %w", day, err)
		}
		delete(byDay, day)
	}

	return rdb.Del(ctx, tmpKey).Err()
}

func restore(ctx context.Context, day string, counts map[string]int64) {
	rdb := cache.GetClient()
	for tool, n := range counts {
		if err := rdb.HIncrBy(ctx, toolUsageKey, field(day, tool), n).Err(); err != nil {
			log.Error().Err(err).Str("day", day).Str("tool", tool).Int64("count", n).Msg("[Counter] failed to restore pending count")
		}
	}
}

// StartFlusher flushes every interval until ctx is cancelled, with a final
// flush on the way out. The returned channel closes after that final flush.
func StartFlusher(ctx context.Context, repo repository.ToolUsageRepository, interval time.Duration) <-chan struct{} {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := FlushAll(repo); err != nil {
					log.Error().Err(err).Msg("[Counter] final flush failed")
				}
				return
			case <-ticker.C:
				if err := FlushAll(repo); err != nil {
					log.Error().Err(err).Msg("[Counter] flush failed")
				}
			}
		}
	}()
	return done
}
