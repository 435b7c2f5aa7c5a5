package dal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// MemoryDAL implements PredictionStore using in-memory storage
type MemoryDAL struct {
	mu      sync.RWMutex
	records []models.PredictionRecord
}

// NewMemoryDAL creates a new in-memory data access layer
func NewMemoryDAL() *MemoryDAL {
	return &MemoryDAL{
		records: []models.PredictionRecord{},
	}
}

func (m *MemoryDAL) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	if rec.Confidence != nil {
		c := *rec.Confidence
		stored.Confidence = &c
	}
	m.records = append(m.records, stored)
	return nil
}

// RecentPredictions returns up to limit records, newest first
func (m *MemoryDAL) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PredictionRecord, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// TeamWinCounts counts successful predictions per predicted winner, highest first
func (m *MemoryDAL) TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, r := range m.records {
		if r.Outcome == models.OutcomeSucceeded && r.WinnerCode != "" {
			counts[r.WinnerCode]++
		}
	}
	m.mu.RUnlock()

	out := make([]models.TeamWinCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, models.TeamWinCount{Code: code, Count: n})
	}
	sortWinCounts(out)
	return out, nil
}

func (m *MemoryDAL) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryDAL) Close() error {
	return nil
}

func sortWinCounts(counts []models.TeamWinCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Code < counts[j].Code
	})
}
