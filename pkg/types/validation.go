package types

import (
	"math"
	"regexp"
	"strings"
)

// Compiled once; id validation runs on every connect and join.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// worldBound caps each position axis. The island is a few units across;
// anything this far out is a malformed client payload, not a move.
const worldBound = 1000.0

// IsValidID reports whether an id is usable as a session or user key.
func IsValidID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}

// ValidateUserName checks a display name supplied at join time.
func ValidateUserName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 50 {
		return ErrInvalidUserName
	}
	return nil
}

// Validate rejects NaN, infinite, and out-of-world coordinates.
func (p Position) Validate() error {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > worldBound {
			return ErrInvalidPosition
		}
	}
	return nil
}

// ValidateMessageText checks chat text before it enters the log.
func ValidateMessageText(text string) error {
	if len(strings.TrimSpace(text)) < 1 || len(text) > 2000 {
		return ErrInvalidMessageText
	}
	return nil
}

// Validate checks a client-reported location. Coordinates are
// [longitude, latitude].
func (l Location) Validate() error {
	if strings.TrimSpace(l.Country) == "" || len(l.Country) > 100 {
		return ErrInvalidLocation
	}
	lon, lat := l.Coordinates[0], l.Coordinates[1]
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return ErrInvalidLocation
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return ErrInvalidLocation
	}
	return nil
}
