package domain

import (
	"fmt"
	"time"
)

// Season is a coarse calendar bucket used to tag tours.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// ParseSeason validates a season tag.
func ParseSeason(s string) (Season, error) {
	switch season := Season(s); season {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter:
		return season, nil
	}
	return "", fmt.Errorf("%w: unknown season %q", ErrValidation, s)
}

// SeasonOf buckets t by month: March-May spring, June-August summer,
// September-November autumn, otherwise winter.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}
