package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// SQLiteDAL implements PredictionStore using SQLite
type SQLiteDAL struct {
	db *sql.DB
}

// NewSQLiteDAL creates a new SQLite data access layer
func NewSQLiteDAL(dbPath string) (*SQLiteDAL, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite3 serializes writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	dal := &SQLiteDAL{db: db}

	if err := dal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}

func (s *SQLiteDAL) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		game_date TEXT NOT NULL,
		home_code TEXT NOT NULL,
		away_code TEXT NOT NULL,
		outcome TEXT NOT NULL,
		winner_code TEXT,
		win_probability REAL,
		confidence REAL,
		error_kind TEXT,
		error_message TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteDAL) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, game_date, home_code, away_code, outcome, winner_code,
			win_probability, confidence, error_kind, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GameDate, rec.HomeCode, rec.AwayCode, string(rec.Outcome),
		nullString(rec.WinnerCode), rec.WinProbability, nullFloat(rec.Confidence),
		nullString(rec.ErrorKind), nullString(rec.ErrorMessage), rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit records, newest first
func (s *SQLiteDAL) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_date, home_code, away_code, outcome, winner_code,
			win_probability, confidence, error_kind, error_message, created_at
		FROM predictions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PredictionRecord{}
	for rows.Next() {
		var (
			rec       models.PredictionRecord
			outcome   string
			winner    sql.NullString
			prob      sql.NullFloat64
			conf      sql.NullFloat64
			errKind   sql.NullString
			errMsg    sql.NullString
			createdMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.GameDate, &rec.HomeCode, &rec.AwayCode, &outcome,
			&winner, &prob, &conf, &errKind, &errMsg, &createdMs); err != nil {
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
		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TeamWinCounts counts successful predictions per predicted winner, highest first
func (s *SQLiteDAL) TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT winner_code, COUNT(*)
		FROM predictions
		WHERE outcome = ? AND winner_code IS NOT NULL AND winner_code <> ''
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

func (s *SQLiteDAL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDAL) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
