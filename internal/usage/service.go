package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gymbook/internal/metrics"
	"gymbook/internal/model"
)

const cacheKeyPrefix = "gymbook:usage:"

// Source lists approved bookings dated on or after from.
type Source interface {
	ListApprovedSince(ctx context.Context, from time.Time) ([]model.Appointment, error)
}

// Service computes usage reports with an optional Redis cache.
type Service struct {
	source   Source
	redis    *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a usage service over source.
func NewService(source Source, logger *zerolog.Logger) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "usage").Logger()
	}
	return &Service{source: source, now: time.Now, logger: l}
}

// UseRedisCache configures optional Redis caching of computed reports.
func (s *Service) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	s.redis = redisClient
	s.cacheTTL = ttl
}

// SetClock overrides time.Now.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// GetUsageMetrics returns the usage report for today.
func (s *Service) GetUsageMetrics(ctx context.Context) (*Report, error) {
	today := dateOnly(s.now())
	key := cacheKey(today)

	var cached Report
	if s.readCache(ctx, key, &cached) {
		metrics.IncUsageCache("hit")
		return &cached, nil
	}
	metrics.IncUsageCache("miss")

	appts, err := s.source.ListApprovedSince(ctx, WindowStart(today))
	if err != nil {
		return nil, fmt.Errorf("list approved bookings: %w", err)
	}
	rows := make([]Row, 0, len(appts))
	for _, a := range appts {
		rows = append(rows, Row{Date: a.Date, ServiceName: a.ServiceName, CoachName: a.Coach})
	}

	report := Aggregate(rows, today)
	s.writeCache(ctx, key, report)
	return &report, nil
}

// Invalidate drops today's cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, cacheKey(dateOnly(s.now()))).Err(); err != nil {
		return fmt.Errorf("invalidate usage cache: %w", err)
	}
	return nil
}

func cacheKey(today time.Time) string {
	return cacheKeyPrefix + today.Format("2006-01-02")
}

func (s *Service) readCache(ctx context.Context, key string, out any) bool {
	if s.redis == nil || s.cacheTTL <= 0 {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("usage cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, val any) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("usage cache write failed")
	}
}
