package form

import (
	"sort"
	"strings"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/teams"
)

// Field keys used in ValidationErrors
const (
	FieldDate    = "date"
	FieldHome    = "home"
	FieldAway    = "away"
	FieldGeneral = "general"
)

const (
	MsgSelectHome  = "Please select a home team"
	MsgSelectAway  = "Please select an away team"
	MsgUnknownTeam = "Unknown team"
	MsgSameTeam    = "Home team and away team cannot be the same"
	MsgInvalidDate = "Please select a valid game date"
)

// Input is the raw form submission
type Input struct {
	Date string `json:"date"`
	Home string `json:"home_team"`
	Away string `json:"away_team"`
}

// ValidationErrors maps a field key to the message shown next to it
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate checks in and builds the request it describes. Every violated rule
// is reported; nothing short-circuits. An empty date means today in UTC.
func Validate(in Input, now time.Time) (models.GameRequest, ValidationErrors) {
	errs := ValidationErrors{}

	home := strings.TrimSpace(in.Home)
	away := strings.TrimSpace(in.Away)

	today := now.UTC()
	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if d := strings.TrimSpace(in.Date); d != "" {
		parsed, err := time.Parse(models.DateLayout, d)
		if err != nil {
			errs[FieldDate] = MsgInvalidDate
		} else {
			date = parsed
		}
	}

	switch {
	case home == "":
		errs[FieldHome] = MsgSelectHome
	case !known(home):
		errs[FieldHome] = MsgUnknownTeam
	}

	switch {
	case away == "":
		errs[FieldAway] = MsgSelectAway
	case !known(away):
		errs[FieldAway] = MsgUnknownTeam
	}

	if home != "" && home == away {
		errs[FieldGeneral] = MsgSameTeam
	}

	if len(errs) > 0 {
		return models.GameRequest{}, errs
	}
	return models.GameRequest{Date: date, HomeCode: home, AwayCode: away}, nil
}

func known(code string) bool {
	_, ok := teams.Find(code)
	return ok
}
