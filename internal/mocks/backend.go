package mocks

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/teams"
)

// PredictionBackend is a stand-in for the prediction service for local
// development. Results are pseudo-random but stable for a given matchup.
type PredictionBackend struct {
	now func() time.Time
}

// NewPredictionBackend creates the mock backend
func NewPredictionBackend() *PredictionBackend {
	logger.Info("Using MOCK prediction backend for local development")
	return &PredictionBackend{now: time.Now}
}

// Handler returns the backend's routes: /health, /predict and /teams
func (b *PredictionBackend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", b.health)
	mux.HandleFunc("/predict", b.predict)
	mux.HandleFunc("/teams", b.listTeams)
	return mux
}

type predictRequest struct {
	Date     *string `json:"date"`
	HomeTeam *string `json:"home_team"`
	AwayTeam *string `json:"away_team"`
}

type predictResponse struct {
	PredictedWinner string  `json:"predictedWinner"`
	WinProbability  float64 `json:"winProbability"`
	Confidence      float64 `json:"confidence"`
	HomeTeam        string  `json:"homeTeam"`
	AwayTeam        string  `json:"awayTeam"`
	GameDate        string  `json:"gameDate"`
}

// Predict returns the mock prediction for a matchup
func Predict(home, away string) (winner string, winProbability, confidence float64) {
	h := fnv.New64a()
	h.Write([]byte(home + away))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	winProbability = round1(45 + rng.Float64()*35)
	confidence = round1(70 + rng.Float64()*20)

	winner = away
	if winProbability > 50 {
		winner = home
	}
	return winner, winProbability, confidence
}

func (b *PredictionBackend) predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if req.Date == nil || req.HomeTeam == nil || req.AwayTeam == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: date, home_team, away_team"})
		return
	}
	if *req.HomeTeam == *req.AwayTeam {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Home team and away team cannot be the same"})
		return
	}

	winner, p, conf := Predict(*req.HomeTeam, *req.AwayTeam)
	resp := predictResponse{
		PredictedWinner: winner,
		WinProbability:  p,
		Confidence:      conf,
		HomeTeam:        *req.HomeTeam,
		AwayTeam:        *req.AwayTeam,
		GameDate:        *req.Date,
	}

	logger.Debug("Mock prediction", "home", resp.HomeTeam, "away", resp.AwayTeam, "winner", winner, "probability", p)
	writeJSON(w, http.StatusOK, resp)
}

func (b *PredictionBackend) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": true,
		"timestamp":    b.now().Format(time.RFC3339),
	})
}

func (b *PredictionBackend) listTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams.Codes()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
