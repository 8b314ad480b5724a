package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/redis/go-redis/v9"
)

// DashboardService aggregated permit statistics
type DashboardService struct {
	permitRepo *repository.PermitRepository
	rdb        *redis.Client
}

// NewDashboardService creates the dashboard service
func NewDashboardService(permitRepo *repository.PermitRepository, rdb *redis.Client) *DashboardService {
	return &DashboardService{permitRepo: permitRepo, rdb: rdb}
}

const (
	statsCacheKey      = "dashboard:stats"
	statsCacheTTL      = 30 * time.Second
	expiringSoonWindow = 24 * time.Hour
)

// Stats dashboard counters
type Stats struct {
	ByStatus []repository.StatusCount `json:"by_status"`
	ByType   []repository.StatusCount `json:"by_type"`
	ByRisk   []repository.StatusCount `json:"by_risk"`
}

// GetStats returns status/type/risk buckets, cached briefly in Redis.
func (s *DashboardService) GetStats(ctx context.Context) (*Stats, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, statsCacheKey).Result(); err == nil && cached != "" {
			var stats Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	byStatus, err := s.permitRepo.CountByColumn(ctx, "status")
	if err != nil {
		return nil, err
	}
	byType, err := s.permitRepo.CountByColumn(ctx, "type")
	if err != nil {
		return nil, err
	}
	byRisk, err := s.permitRepo.CountByColumn(ctx, "risk_level")
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: byStatus, ByType: byType, ByRisk: byRisk}

	if s.rdb != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.rdb.Set(ctx, statsCacheKey, data, statsCacheTTL)
		}
	}
	return stats, nil
}

// ListExpiringSoon returns permits whose validity ends within 24 hours.
func (s *DashboardService) ListExpiringSoon(ctx context.Context, limit int) ([]entity.Permit, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.permitRepo.ListExpiringSoon(ctx, expiringSoonWindow, limit)
}

// ListMyPending returns the permits awaiting the user's attention.
func (s *DashboardService) ListMyPending(ctx context.Context, userID string, isApprover bool) ([]entity.Permit, error) {
	return s.permitRepo.ListMyPending(ctx, userID, isApprover)
}
