package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// PostgresDAL implements PredictionStore using PostgreSQL
type PostgresDAL struct {
	db *sql.DB
}

// NewPostgresDAL creates a new PostgreSQL data access layer optimized for CloudNativePG
func NewPostgresDAL(connString string) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Retry the first ping; cluster DNS can lag behind pod start
	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()

		if lastErr == nil {
			break
		}

		logger.Warn("Postgres not ready", "attempt", i+1, "error", lastErr)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	dal := &PostgresDAL{db: db}

	if err := dal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}

func (p *PostgresDAL) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		game_date DATE NOT NULL,
		home_code TEXT NOT NULL,
		away_code TEXT NOT NULL,
		outcome TEXT NOT NULL,
		winner_code TEXT,
		win_probability DOUBLE PRECISION,
		confidence DOUBLE PRECISION,
		error_kind TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_predictions_winner ON predictions(winner_code) WHERE outcome = 'succeeded';
	`

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (p *PostgresDAL) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO predictions (id, game_date, home_code, away_code, outcome, winner_code,
			win_probability, confidence, error_kind, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.GameDate, rec.HomeCode, rec.AwayCode, string(rec.Outcome),
		nullString(rec.WinnerCode), rec.WinProbability, nullFloat(rec.Confidence),
		nullString(rec.ErrorKind), nullString(rec.ErrorMessage), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit records, newest first
func (p *PostgresDAL) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, to_char(game_date, 'YYYY-MM-DD'), home_code, away_code, outcome, winner_code,
			win_probability, confidence, error_kind, error_message, created_at
		FROM predictions
		ORDER BY created_at DESC, seq DESC
		LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PredictionRecord{}
	for rows.Next() {
		var (
			rec     models.PredictionRecord
			outcome string
			winner  sql.NullString
			prob    sql.NullFloat64
			conf    sql.NullFloat64
			errKind sql.NullString
			errMsg  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.GameDate, &rec.HomeCode, &rec.AwayCode, &outcome,
			&winner, &prob, &conf, &errKind, &errMsg, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Outcome = models.Outcome(outcome)
		rec.WinnerCode = winner.String
		rec.WinProbability = prob.Float64
		if conf.Valid {
			c := conf.Float64
			rec.Confidence = &c
		}
		rec.ErrorKind = errKind.String
		rec.ErrorMessage = errMsg.String
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TeamWinCounts counts successful predictions per predicted winner, highest first
func (p *PostgresDAL) TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT winner_code, COUNT(*)
		FROM predictions
		WHERE outcome = $1 AND winner_code IS NOT NULL AND winner_code <> ''
		GROUP BY winner_code
		ORDER BY COUNT(*) DESC, winner_code ASC`, string(models.OutcomeSucceeded))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TeamWinCount{}
	for rows.Next() {
		var wc models.TeamWinCount
		if err := rows.Scan(&wc.Code, &wc.Count); err != nil {
			return nil, err
		}
		out = append(out, wc)
	}
	return out, rows.Err()
}

func (p *PostgresDAL) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDAL) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
