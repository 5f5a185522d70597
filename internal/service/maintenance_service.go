package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/unidocs-api/pkg/jobs"
	"github.com/noah-isme/unidocs-api/pkg/storage"
)

const orphanGracePeriod = time.Hour

type refreshTokenPurger interface {
	PurgeRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

type storageKeyIndex interface {
	ReferencedKeys(ctx context.Context, keys []string) (map[string]bool, error)
}

// MaintenanceService runs periodic housekeeping.
type MaintenanceService struct {
	tokens  refreshTokenPurger
	index   storageKeyIndex
	blobs   storage.BlobStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewMaintenanceService constructs the service. blobs is nil for the database backend.
func NewMaintenanceService(tokens refreshTokenPurger, index storageKeyIndex, blobs storage.BlobStore, metrics *MetricsService, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		tokens:  tokens,
		index:   index,
		blobs:   blobs,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tasks returns the housekeeping tasks for the scheduler.
func (s *MaintenanceService) Tasks() []jobs.Task {
	return []jobs.Task{
		{Name: "purge_refresh_tokens", Timeout: time.Minute, Run: s.PurgeRefreshTokens},
		{Name: "sweep_orphan_blobs", Timeout: 10 * time.Minute, Run: s.SweepOrphanBlobs},
	}
}

// PurgeRefreshTokens deletes refresh tokens that expired or were revoked.
func (s *MaintenanceService) PurgeRefreshTokens(ctx context.Context) error {
	removed, err := s.tokens.PurgeRefreshTokens(ctx, s.now())
	if err != nil {
		return fmt.Errorf("purge refresh tokens: %w", err)
	}
	s.metrics.RecordMaintenance("refresh_tokens", removed)
	if removed > 0 {
		s.logger.Info("purged refresh tokens", zap.Int64("removed", removed))
	}
	return nil
}

// SweepOrphanBlobs removes stored files no document references. Recent files
// are skipped so in-flight uploads are not touched.
func (s *MaintenanceService) SweepOrphanBlobs(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}
	keys, err := s.blobs.Keys(ctx, s.now().Add(-orphanGracePeriod))
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	referenced, err := s.index.ReferencedKeys(ctx, keys)
	if err != nil {
		return fmt.Errorf("resolve blob references: %w", err)
	}

	var removed int64
	for _, key := range keys {
		if referenced[key] {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to delete orphan blob", zap.String("key", key), zap.Error(err))
			continue
		}
		removed++
	}
	s.metrics.RecordMaintenance("orphan_blobs", removed)
	if removed > 0 {
		s.logger.Info("removed orphan blobs", zap.Int64("removed", removed))
	}
	return nil
}
