package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardServiceConfig governs summary caching behaviour.
type DashboardServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	RecentLimit  int
}

// DashboardService assembles the role-scoped dashboard views: the home
// summary, the coordinator review queue and the manager approval queue.
type DashboardService struct {
	claims  claimStore
	cache   summaryCache
	metrics *MetricsService
	logger  *zap.Logger
	config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService. Cache and metrics are
// optional; without a cache every summary is computed from the database.
func NewDashboardService(claims claimStore, cache summaryCache, metrics *MetricsService, logger *zap.Logger, config DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = 5
	}
	return &DashboardService{claims: claims, cache: cache, metrics: metrics, logger: logger, config: config}
}

// Summary returns the home dashboard payload. Lecturers see counts and recent
// claims scoped to their own submissions; reviewer roles see system totals.
// Cache failures degrade to a database read, never to an error.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummaryResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	key := fmt.Sprintf("dashboard:summary:%s:%s", actor.Role, actor.UserID)
	if s.cacheEnabled() {
		started := time.Now()
		var cached dto.DashboardSummaryResponse
		err := s.cache.Get(ctx, key, &cached)
		s.observeCache(err == nil, time.Since(started))
		if err == nil {
			return &cached, nil
		}
		if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	ownerID := actor.UserID
	if actor.Role.IsReviewer() {
		ownerID = ""
	}

	counts, err := s.claims.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count claims")
	}
	recent, err := s.claims.List(ctx, models.ClaimFilter{OwnerID: ownerID, Limit: s.config.RecentLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent claims")
	}

	summary := &dto.DashboardSummaryResponse{Counts: counts, RecentClaims: recent}

	if s.cacheEnabled() {
		started := time.Now()
		if err := s.cache.Set(ctx, key, summary, s.config.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.ObserveCacheWrite(time.Since(started))
		}
	}
	return summary, nil
}

// CoordinatorQueue lists claims awaiting coordinator review, newest first.
// Without a status override it shows both pending and coordinator-approved
// claims; the lecturer name filter matches first or last name.
func (s *DashboardService) CoordinatorQueue(ctx context.Context, actor *models.JWTClaims, query dto.ClaimQuery) ([]models.Claim, *dto.ReviewQueueCounts, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanActAsCoordinator() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "coordinator role required")
	}

	statuses := []models.ClaimStatus{models.ClaimStatusPending, models.ClaimStatusCoordinatorApproved}
	if query.Status != "" {
		if !query.Status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
		}
		statuses = []models.ClaimStatus{query.Status}
	}

	claims, err := s.claims.List(ctx, models.ClaimFilter{
		Statuses:     statuses,
		LecturerName: query.LecturerName,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review queue")
	}

	counts, err := s.queueCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return claims, counts, nil
}

// ManagerQueue lists claims awaiting final decision in submission order, so
// the oldest claim is handled first. The status set is fixed; only the
// lecturer name filter applies.
func (s *DashboardService) ManagerQueue(ctx context.Context, actor *models.JWTClaims, lecturerName string) ([]models.Claim, *dto.ReviewQueueCounts, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanActAsManager() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "academic manager role required")
	}

	claims, err := s.claims.List(ctx, models.ClaimFilter{
		Statuses:      []models.ClaimStatus{models.ClaimStatusPending, models.ClaimStatusCoordinatorApproved},
		LecturerName:  lecturerName,
		SortAscending: true,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval queue")
	}

	counts, err := s.queueCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return claims, counts, nil
}

func (s *DashboardService) queueCounts(ctx context.Context) (*dto.ReviewQueueCounts, error) {
	counts, err := s.claims.CountByStatus(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count claims")
	}
	return &dto.ReviewQueueCounts{
		TotalPending:        counts.Pending,
		CoordinatorApproved: counts.CoordinatorApproved,
		WaitingForManager:   counts.Pending + counts.CoordinatorApproved,
	}, nil
}

func (s *DashboardService) cacheEnabled() bool {
	return s.config.CacheEnabled && s.cache != nil
}

func (s *DashboardService) observeCache(hit bool, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheOperation(hit, duration)
}
