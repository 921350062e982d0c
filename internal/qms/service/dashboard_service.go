package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stratamine/qms/internal/qms/repository"
	"go.uber.org/zap"
)

const dashboardCacheTTL = 60 * time.Second

// DashboardService aggregates NC statistics per site. Results are cached in
// redis for a minute; the dashboard tolerates slightly stale numbers.
type DashboardService struct {
	ncRepo *repository.NCRepository
	rdb    *redis.Client
	logger *zap.Logger
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(ncRepo *repository.NCRepository, rdb *redis.Client, logger *zap.Logger) *DashboardService {
	return &DashboardService{ncRepo: ncRepo, rdb: rdb, logger: logger}
}

// Stats is the dashboard payload.
type Stats struct {
	ByStatus    map[string]int64 `json:"by_status"`
	ByRisk      map[string]int64 `json:"by_risk"`
	OpenTotal   int64            `json:"open_total"`
	Overdue     int64            `json:"overdue"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// SiteStats returns cached-or-fresh NC statistics for a site.
func (s *DashboardService) SiteStats(ctx context.Context, siteID string) (*Stats, error) {
	cacheKey := "qms:dashboard:" + siteID
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var stats Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	byStatus, err := s.ncRepo.CountByStatus(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	byRisk, err := s.ncRepo.CountByRisk(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to count by risk: %w", err)
	}

	_, overdue, err := s.ncRepo.List(ctx, siteID, repository.NCFilter{OverdueOnly: true, PageSize: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue: %w", err)
	}

	var open int64
	for status, n := range byStatus {
		if status != "closed" && status != "rejected" {
			open += n
		}
	}

	stats := &Stats{
		ByStatus:    byStatus,
		ByRisk:      byRisk,
		OpenTotal:   open,
		Overdue:     overdue,
		GeneratedAt: time.Now(),
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, payload, dashboardCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
			}
		}
	}

	return stats, nil
}
