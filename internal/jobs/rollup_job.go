package jobs

import (
	"log/slog"
	"time"

	"pagepulse/internal/config"
	"pagepulse/internal/database"
	"pagepulse/internal/rollups"
)

// RollupJob periodically aggregates recent pageviews into the rollup
// tables. Aggregation is at-least-once; overlap between runs appends
// duplicate rows rather than losing data.
type RollupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewRollupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *RollupJob {
	return &RollupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run aggregates the trailing lookback window ending now.
func (j *RollupJob) Run() error {
	return rollups.Run(
		j.dbManager,
		j.logger,
		time.Now().UTC(),
		j.cfg.Lookback(),
		j.cfg.ReferenceTimezone(),
	)
}
