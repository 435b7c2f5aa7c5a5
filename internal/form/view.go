package form

import (
	"fmt"
	"math"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/teams"
)

// LongDateLayout renders game dates like "Friday, March 15, 2024"
const LongDateLayout = "Monday, January 2, 2006"

// View is everything the result page shows for a successful prediction
type View struct {
	HomeLabel      string  `json:"homeTeam"`
	AwayLabel      string  `json:"awayTeam"`
	WinnerCode     string  `json:"winnerCode"`
	WinnerLabel    string  `json:"winner"`
	IsHomeWinner   bool    `json:"isHomeWinner"`
	BarWidth       float64 `json:"barWidth"`
	Percent        int     `json:"percent"`
	ConfidenceText string  `json:"confidenceText,omitempty"`
	GameDate       string  `json:"gameDate"`
	GameDateISO    string  `json:"gameDateIso"`
}

// NewView derives display values from a result and the request that produced it.
// Probabilities outside 0-100 are clamped for display.
func NewView(req models.GameRequest, res models.PredictionResult) View {
	p := clampPercent(res.WinProbability)

	v := View{
		HomeLabel:    teams.Label(req.HomeCode),
		AwayLabel:    teams.Label(req.AwayCode),
		WinnerCode:   res.WinnerCode,
		WinnerLabel:  teams.Label(res.WinnerCode),
		IsHomeWinner: res.WinnerCode == req.HomeCode,
		BarWidth:     p,
		Percent:      int(math.Round(p)),
		GameDate:     req.Date.Format(LongDateLayout),
		GameDateISO:  req.DateString(),
	}
	if res.Confidence != nil {
		v.ConfidenceText = fmt.Sprintf("Model Confidence: %d%%", int(math.Round(clampPercent(*res.Confidence))))
	}
	return v
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}
