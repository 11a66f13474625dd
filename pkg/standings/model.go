package standings

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Season identifies a championship year.
type Season int

func (s Season) String() string {
	return strconv.Itoa(int(s))
}

// ParseSeason reads a season year such as "2021".
func ParseSeason(value string) (Season, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid season %q", value)
	}
	if year <= 0 {
		return 0, errors.Errorf("invalid season %q", value)
	}
	return Season(year), nil
}

// DriverStanding is one row of a season table: the driver display name and
// the sum of all the points the driver scored in that season.
type DriverStanding struct {
	Driver string  `json:"driver"`
	Points float64 `json:"points"`
}

// Source is the read side of the results database.
type Source interface {
	// ListSeasons returns every distinct season, most recent first.
	ListSeasons(ctx context.Context) ([]Season, error)
	// FetchStandings returns the season table ordered by points, highest first.
	// A season without standing records yields an empty slice and no error.
	FetchStandings(ctx context.Context, season Season) ([]DriverStanding, error)
}

func containsSeason(seasons []Season, season Season) bool {
	for _, s := range seasons {
		if s == season {
			return true
		}
	}
	return false
}
