package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// Store is the key/value backend the prediction cache writes through
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore implements Store on go-redis
type RedisStore struct {
	rdb *redis.Client
}

// ConnectRedis opens a client and pings it
func ConnectRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Observer is told about every lookup
type Observer interface {
	CacheLookup(hit bool)
}

// Predictor serves repeated predictions for the same game from the store.
// Only successful results are cached; failures always reach the backend.
type Predictor struct {
	next     form.Predictor
	store    Store
	ttl      time.Duration
	observer Observer
}

// NewPredictor wraps next with a result cache
func NewPredictor(next form.Predictor, store Store, ttl time.Duration, observer Observer) *Predictor {
	return &Predictor{next: next, store: store, ttl: ttl, observer: observer}
}

// Key returns the cache key for a game
func Key(req models.GameRequest) string {
	return fmt.Sprintf("prediction:%s:%s:%s", req.DateString(), req.HomeCode, req.AwayCode)
}

func (p *Predictor) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	key := Key(req)

	if data, ok, err := p.store.Get(ctx, key); err != nil {
		logger.Warn("Prediction cache read failed", "key", key, "error", err)
	} else if ok {
		var res models.PredictionResult
		if err := json.Unmarshal(data, &res); err == nil {
			p.observe(true)
			logger.Debug("Prediction cache hit", "key", key)
			return &res, nil
		}
		logger.Warn("Discarding unreadable cache entry", "key", key)
	}
	p.observe(false)

	res, err := p.next.Predict(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(res)
	if err == nil {
		err = p.store.Set(ctx, key, data, p.ttl)
	}
	if err != nil {
		logger.Warn("Prediction cache write failed", "key", key, "error", err)
	}

	return res, nil
}

func (p *Predictor) observe(hit bool) {
	if p.observer != nil {
		p.observer.CacheLookup(hit)
	}
}
