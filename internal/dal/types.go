package dal

import (
	"context"
	"errors"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// DefaultRecentLimit is used when callers ask for a non-positive number of records
const DefaultRecentLimit = 20

// ErrInvalidRecord is returned when a record is missing its identity or teams
var ErrInvalidRecord = errors.New("prediction record requires id, home and away codes")

// PredictionStore defines the interface for the prediction history data access layer
type PredictionStore interface {
	SavePrediction(ctx context.Context, rec *models.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error)
	Ping(ctx context.Context) error
	Close() error
}

func validateRecord(rec *models.PredictionRecord) error {
	if rec == nil || rec.ID == "" || rec.HomeCode == "" || rec.AwayCode == "" {
		return ErrInvalidRecord
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
