package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type classReader interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Class, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CapacityService aggregates live class records into per-program capacity
// snapshots. Read-only; never mutates class data.
type CapacityService struct {
	classes classReader
	cache   snapshotCache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCapacityService constructs CapacityService. cache may be nil.
func NewCapacityService(classes classReader, cache snapshotCache, ttl time.Duration, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{classes: classes, cache: cache, ttl: ttl, logger: logger}
}

// Snapshot returns program -> {capacity, enrolled, available} for a school.
// A program with no class records has no key in the result; callers treat the
// missing key as zero capacity. Snapshots are cached per school.
func (s *CapacityService) Snapshot(ctx context.Context, schoolID string) (map[string]models.CapacitySnapshot, error) {
	key := capacityCacheKey(schoolID)
	if s.cache != nil {
		cached := map[string]models.CapacitySnapshot{}
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("capacity cache read failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}

	classes, err := s.classes.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "class lookup failed")
	}

	snapshot := Aggregate(classes)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, snapshot, s.ttl); err != nil {
			s.logger.Warn("capacity cache write failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}
	return snapshot, nil
}

// Aggregate folds class records into per-program sums. Available never goes
// below zero for over-enrolled programs.
func Aggregate(classes []models.Class) map[string]models.CapacitySnapshot {
	result := make(map[string]models.CapacitySnapshot, len(classes))
	for _, class := range classes {
		snap := result[class.Program]
		snap.Capacity += class.Capacity
		snap.Enrolled += class.CurrentEnrollment
		snap.Available = snap.Capacity - snap.Enrolled
		if snap.Available < 0 {
			snap.Available = 0
		}
		result[class.Program] = snap
	}
	return result
}

func capacityCacheKey(schoolID string) string {
	return fmt.Sprintf("waitlist:capacity:%s", schoolID)
}
