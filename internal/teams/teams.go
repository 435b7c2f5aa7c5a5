package teams

import "github.com/Billy-Davies-2/nba-predictor-ui/internal/models"

// Placeholder is shown wherever a team code has no directory entry
const Placeholder = "Team"

var directory = []models.Team{
	{Code: "ATL", Name: "Atlanta Hawks", City: "Atlanta"},
	{Code: "BOS", Name: "Boston Celtics", City: "Boston"},
	{Code: "BRK", Name: "Brooklyn Nets", City: "Brooklyn"},
	{Code: "CHA", Name: "Charlotte Hornets", City: "Charlotte"},
	{Code: "CHI", Name: "Chicago Bulls", City: "Chicago"},
	{Code: "CLE", Name: "Cleveland Cavaliers", City: "Cleveland"},
	{Code: "DAL", Name: "Dallas Mavericks", City: "Dallas"},
	{Code: "DEN", Name: "Denver Nuggets", City: "Denver"},
	{Code: "DET", Name: "Detroit Pistons", City: "Detroit"},
	{Code: "GSW", Name: "Golden State Warriors", City: "Golden State"},
	{Code: "HOU", Name: "Houston Rockets", City: "Houston"},
	{Code: "IND", Name: "Indiana Pacers", City: "Indiana"},
	{Code: "LAC", Name: "LA Clippers", City: "LA"},
	{Code: "LAL", Name: "Los Angeles Lakers", City: "Los Angeles"},
	{Code: "MEM", Name: "Memphis Grizzlies", City: "Memphis"},
	{Code: "MIA", Name: "Miami Heat", City: "Miami"},
	{Code: "MIL", Name: "Milwaukee Bucks", City: "Milwaukee"},
	{Code: "MIN", Name: "Minnesota Timberwolves", City: "Minnesota"},
	{Code: "NOP", Name: "New Orleans Pelicans", City: "New Orleans"},
	{Code: "NYK", Name: "New York Knicks", City: "New York"},
	{Code: "OKC", Name: "Oklahoma City Thunder", City: "Oklahoma City"},
	{Code: "ORL", Name: "Orlando Magic", City: "Orlando"},
	{Code: "PHI", Name: "Philadelphia 76ers", City: "Philadelphia"},
	{Code: "PHX", Name: "Phoenix Suns", City: "Phoenix"},
	{Code: "POR", Name: "Portland Trail Blazers", City: "Portland"},
	{Code: "SAC", Name: "Sacramento Kings", City: "Sacramento"},
	{Code: "SAS", Name: "San Antonio Spurs", City: "San Antonio"},
	{Code: "TOR", Name: "Toronto Raptors", City: "Toronto"},
	{Code: "UTA", Name: "Utah Jazz", City: "Utah"},
	{Code: "WAS", Name: "Washington Wizards", City: "Washington"},
}

var byCode = func() map[string]int {
	idx := make(map[string]int, len(directory))
	for i, t := range directory {
		idx[t.Code] = i
	}
	return idx
}()

// List returns every team in display order. Callers get their own copy.
func List() []models.Team {
	out := make([]models.Team, len(directory))
	copy(out, directory)
	return out
}

// Find looks up a team by code
func Find(code string) (models.Team, bool) {
	i, ok := byCode[code]
	if !ok {
		return models.Team{}, false
	}
	return directory[i], true
}

// Codes returns every team code in display order
func Codes() []string {
	codes := make([]string, len(directory))
	for i, t := range directory {
		codes[i] = t.Code
	}
	return codes
}

// Label returns the display name for code, or Placeholder if it is unknown
func Label(code string) string {
	if t, ok := Find(code); ok {
		return t.Name
	}
	return Placeholder
}
