package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// StatsWindow bounds the win-count aggregation
const StatsWindow = 30 * 24 * time.Hour

// Client records completed predictions in ClickHouse for analytics
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client and ensures the events table exists
func NewClient(ctx context.Context, addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS prediction_events (
			id String,
			game_date Date,
			home_code LowCardinality(String),
			away_code LowCardinality(String),
			outcome LowCardinality(String),
			winner_code LowCardinality(String),
			win_probability Float64,
			error_kind LowCardinality(String),
			timestamp DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (timestamp, id)
	`
	if err := c.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create prediction_events table: %w", err)
	}
	return nil
}

// RecordPrediction appends one completed submission
func (c *Client) RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	gameDate, err := time.Parse(models.DateLayout, rec.GameDate)
	if err != nil {
		return fmt.Errorf("invalid game date %q: %w", rec.GameDate, err)
	}

	err = c.conn.Exec(ctx, `
		INSERT INTO prediction_events
			(id, game_date, home_code, away_code, outcome, winner_code, win_probability, error_kind, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, gameDate, rec.HomeCode, rec.AwayCode, string(rec.Outcome),
		rec.WinnerCode, rec.WinProbability, rec.ErrorKind, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}

// TeamWinCounts returns how often each team was predicted to win over the
// last StatsWindow, highest first
func (c *Client) TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error) {
	query := `
		SELECT
			winner_code,
			toInt64(count()) AS wins
		FROM prediction_events
		WHERE outcome = ?
		AND winner_code != ''
		AND timestamp >= now() - toIntervalSecond(?)
		GROUP BY winner_code
		ORDER BY wins DESC, winner_code ASC
	`

	rows, err := c.conn.Query(ctx, query, string(models.OutcomeSucceeded), int64(StatsWindow.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TeamWinCount{}
	for rows.Next() {
		var (
			code string
			wins int64
		)
		if err := rows.Scan(&code, &wins); err != nil {
			return nil, err
		}
		out = append(out, models.TeamWinCount{Code: code, Count: int(wins)})
	}

	return out, rows.Err()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
