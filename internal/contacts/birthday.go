package contacts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rememberme/rememberme/internal/model"
)

// Birthday is a month/day with an optional year (0 when unknown).
type Birthday struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseBirthday accepts "YYYY-MM-DD" or "--MM-DD" (year unknown).
func ParseBirthday(s string) (Birthday, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Birthday{}, fmt.Errorf("empty birthday")
	}

	var yearPart, rest string
	if strings.HasPrefix(s, "--") {
		rest = s[2:]
	} else {
		parts := strings.SplitN(s, "-", 2)
		if len(parts) != 2 {
			return Birthday{}, fmt.Errorf("invalid birthday %q", s)
		}
		yearPart, rest = parts[0], parts[1]
	}

	md := strings.Split(rest, "-")
	if len(md) != 2 {
		return Birthday{}, fmt.Errorf("invalid birthday %q", s)
	}
	month, err := strconv.Atoi(md[0])
	if err != nil || month < 1 || month > 12 {
		return Birthday{}, fmt.Errorf("invalid birthday month in %q", s)
	}
	day, err := strconv.Atoi(md[1])
	if err != nil || day < 1 {
		return Birthday{}, fmt.Errorf("invalid birthday day in %q", s)
	}

	b := Birthday{Month: time.Month(month), Day: day}
	if yearPart != "" {
		year, err := strconv.Atoi(yearPart)
		if err != nil || year < 1800 {
			return Birthday{}, fmt.Errorf("invalid birthday year in %q", s)
		}
		b.Year = year
	}

	// Feb 29 is valid in a leap reference year even without a known year.
	refYear := b.Year
	if refYear == 0 {
		refYear = 2000
	}
	if day > daysIn(b.Month, refYear) {
		return Birthday{}, fmt.Errorf("invalid birthday day in %q", s)
	}
	return b, nil
}

// String formats the birthday back to its storage form.
func (b Birthday) String() string {
	if b.Year == 0 {
		return fmt.Sprintf("--%02d-%02d", int(b.Month), b.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", b.Year, int(b.Month), b.Day)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// occurrence returns the birthday date in the given year. Feb 29 falls on
// Feb 28 in non-leap years.
func (b Birthday) occurrence(year int, loc *time.Location) time.Time {
	day := b.Day
	if last := daysIn(b.Month, year); day > last {
		day = last
	}
	return time.Date(year, b.Month, day, 0, 0, 0, 0, loc)
}

// NextBirthday returns the next occurrence on or after today.
func NextBirthday(b Birthday, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := b.occurrence(now.Year(), now.Location())
	if next.Before(today) {
		next = b.occurrence(now.Year()+1, now.Location())
	}
	return next
}

// DaysUntilBirthday is 0 when the birthday is today.
func DaysUntilBirthday(b Birthday, now time.Time) int {
	return DaysBetween(now, NextBirthday(b, now))
}

// AgeOnNextBirthday returns the age being turned, or 0 when the year is unknown.
func AgeOnNextBirthday(b Birthday, now time.Time) int {
	if b.Year == 0 {
		return 0
	}
	return NextBirthday(b, now).Year() - b.Year
}

// UpcomingBirthday is an entry in the dashboard birthday list.
type UpcomingBirthday struct {
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	DaysUntil  int       `json:"days_until"`
	TurningAge int       `json:"turning_age,omitempty"`
}

// UpcomingBirthdays lists birthdays within the next withinDays days,
// soonest first. Archived persons and unparseable birthdays are skipped.
func UpcomingBirthdays(persons []model.Person, now time.Time, withinDays int) []UpcomingBirthday {
	var out []UpcomingBirthday
	for _, p := range persons {
		if p.Archived || p.Birthday == "" {
			continue
		}
		b, err := ParseBirthday(p.Birthday)
		if err != nil {
			continue
		}
		days := DaysUntilBirthday(b, now)
		if days > withinDays {
			continue
		}
		out = append(out, UpcomingBirthday{
			PersonID:   p.ID,
			Name:       p.FullName(),
			Date:       NextBirthday(b, now),
			DaysUntil:  days,
			TurningAge: AgeOnNextBirthday(b, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].Name < out[j].Name
	})
	return out
}
