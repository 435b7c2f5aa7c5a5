package models

import "time"

// DateLayout is the calendar date format used on the wire and in forms
const DateLayout = "2006-01-02"

// Team represents an NBA franchise in the team directory
type Team struct {
	Code string `json:"code"`
	Name string `json:"name"`
	City string `json:"city"`
}

// GameRequest is a validated prediction request built from form input
type GameRequest struct {
	Date     time.Time `json:"date"`
	HomeCode string    `json:"homeCode"`
	AwayCode string    `json:"awayCode"`
}

// DateString returns the request date as YYYY-MM-DD
func (r GameRequest) DateString() string {
	return r.Date.Format(DateLayout)
}

// PredictionResult is the normalized answer from the prediction service
type PredictionResult struct {
	WinnerCode     string   `json:"winnerCode"`
	WinProbability float64  `json:"winProbability"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// Outcome is the terminal state of a submission
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// PredictionRecord is one completed submission kept in the history store
type PredictionRecord struct {
	ID             string    `json:"id"`
	GameDate       string    `json:"gameDate"`
	HomeCode       string    `json:"homeCode"`
	AwayCode       string    `json:"awayCode"`
	Outcome        Outcome   `json:"outcome"`
	WinnerCode     string    `json:"winnerCode,omitempty"`
	WinProbability float64   `json:"winProbability,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
	ErrorKind      string    `json:"errorKind,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TeamWinCount is the number of times a team was picked as the winner
type TeamWinCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}
