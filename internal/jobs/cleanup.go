package jobs

import (
	"log/slog"
	"time"

	"pagepulse/internal/config"
	"pagepulse/internal/database"
	"pagepulse/internal/pageviews"
)

// CleanupJob removes raw pageviews past the retention period. The rollup
// tables remain the durable record.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes raw pageviews older than the retention cutoff.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.PageviewRetentionDays
	db := j.dbManager.GetConnection()
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old pageviews",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	var countToDelete int64
	if err := db.Model(&pageviews.Pageview{}).
		Where("created_at < ?", cutoffDate).
		Count(&countToDelete).Error; err != nil {
		j.logger.Error("Failed to count old pageviews", slog.Any("error", err))
		return err
	}

	if countToDelete == 0 {
		j.logger.Debug("No old pageviews to clean up")
		return nil
	}

	// Delete in batches to avoid locking the database for too long
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("created_at < ?", cutoffDate).
			Limit(batchSize).
			Delete(&pageviews.Pageview{})

		if result.Error != nil {
			j.logger.Error("Failed to delete old pageviews",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	j.logger.Info("Cleaned up old pageviews",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", retentionDays))

	return nil
}
