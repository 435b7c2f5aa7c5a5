package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
)

func init() {
	logger.Init()
}

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingPredictor struct {
	calls int
	res   *models.PredictionResult
	err   error
}

func (c *countingPredictor) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	c.calls++
	return c.res, c.err
}

type lookups struct{ hits, misses int }

func (l *lookups) CacheLookup(hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

var game = models.GameRequest{
	Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	HomeCode: "LAL",
	AwayCode: "BOS",
}

func TestKey(t *testing.T) {
	if got := Key(game); got != "prediction:2024-03-15:LAL:BOS" {
		t.Errorf("Key() = %q", got)
	}
}

func TestPredictorCachesSuccess(t *testing.T) {
	conf := 60.0
	next := &countingPredictor{res: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 72, Confidence: &conf}}
	store := newMemStore()
	obs := &lookups{}
	p := NewPredictor(next, store, 5*time.Minute, obs)

	for i := 0; i < 3; i++ {
		res, err := p.Predict(context.Background(), game)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if res.WinnerCode != "BOS" || res.WinProbability != 72 || res.Confidence == nil || *res.Confidence != 60 {
			t.Errorf("unexpected result %+v", res)
		}
	}

	if next.calls != 1 {
		t.Errorf("expected backend to be called once, got %d", next.calls)
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %+v", obs)
	}
	if store.ttls[Key(game)] != 5*time.Minute {
		t.Errorf("expected TTL 5m, got %v", store.ttls[Key(game)])
	}
}

func TestPredictorDoesNotCacheFailures(t *testing.T) {
	next := &countingPredictor{err: &predictor.Error{Kind: predictor.KindRequestRejected, Status: 422, Message: "invalid team"}}
	store := newMemStore()
	p := NewPredictor(next, store, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := p.Predict(context.Background(), game)
		pe, ok := err.(*predictor.Error)
		if !ok || pe.Message != "invalid team" {
			t.Fatalf("expected the backend error to pass through, got %v", err)
		}
	}

	if next.calls != 2 {
		t.Errorf("expected 2 backend calls, got %d", next.calls)
	}
	if len(store.data) != 0 {
		t.Errorf("failures should not be cached, store has %d entries", len(store.data))
	}
}

func TestPredictorFallsThroughOnStoreError(t *testing.T) {
	next := &countingPredictor{res: &models.PredictionResult{WinnerCode: "LAL", WinProbability: 55}}
	store := newMemStore()
	store.failGet = true
	p := NewPredictor(next, store, time.Minute, nil)

	res, err := p.Predict(context.Background(), game)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.WinnerCode != "LAL" || next.calls != 1 {
		t.Errorf("expected backend result, got %+v after %d calls", res, next.calls)
	}
}

func TestPredictorIgnoresCorruptEntry(t *testing.T) {
	next := &countingPredictor{res: &models.PredictionResult{WinnerCode: "LAL", WinProbability: 55}}
	store := newMemStore()
	store.data[Key(game)] = []byte("not json")
	p := NewPredictor(next, store, time.Minute, nil)

	res, err := p.Predict(context.Background(), game)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.WinnerCode != "LAL" || next.calls != 1 {
		t.Errorf("expected backend result, got %+v", res)
	}
}
