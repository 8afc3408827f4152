package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts used by the downtime ledger. down_at is stored as text
// so that lexicographic order matches chronological order.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

var ErrInvalidSite = errors.New("invalid site")

type SiteID int64

type Site struct {
	ID        SiteID `json:"id"`
	Name      string `json:"name"`
	Purpose   string `json:"purpose"`
	URL       string `json:"url"`
	Frequency int    `json:"frequency"` // seconds between checks
	Enabled   bool   `json:"enabled"`
}

// Validate rejects configuration the scheduler cannot run.
func (s Site) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidSite)
	}
	if s.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be positive, got %d", ErrInvalidSite, s.Frequency)
	}
	return nil
}

// Interval converts the site's frequency into a duration using unit as the
// length of one frequency step (time.Second in production).
func (s Site) Interval(unit time.Duration) time.Duration {
	return time.Duration(s.Frequency) * unit
}

// FormatTimestamp renders t at second resolution in its own location.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a down_at value back in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, loc)
}
