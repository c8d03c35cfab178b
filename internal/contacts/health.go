// Package contacts holds the pure relationship helpers: health scoring,
// birthday math and duplicate matching. Nothing here touches storage.
package contacts

import (
	"math"
	"sort"
	"time"

	"github.com/rememberme/rememberme/internal/model"
)

// HealthState is the garden metaphor for how recently a contact was tended.
type HealthState string

const (
	Blooming  HealthState = "blooming"
	Nourished HealthState = "nourished"
	Thirsty   HealthState = "thirsty"
	Fading    HealthState = "fading"
)

// Severity orders states from healthiest (0) to most neglected (3).
func (s HealthState) Severity() int {
	switch s {
	case Blooming:
		return 0
	case Nourished:
		return 1
	case Thirsty:
		return 2
	default:
		return 3
	}
}

// HealthStates lists every state in severity order.
var HealthStates = []HealthState{Blooming, Nourished, Thirsty, Fading}

// DefaultFrequencyDays is the cadence used when none is known.
const DefaultFrequencyDays = 30

// DefaultCadence returns the target days between contacts for an importance.
func DefaultCadence(imp model.Importance) int {
	switch imp {
	case model.ImportanceHigh:
		return 14
	case model.ImportanceLow:
		return 90
	default:
		return DefaultFrequencyDays
	}
}

// Health maps days since last contact against a target cadence:
// ratio <= 0.5 blooming, <= 1.0 nourished, <= 1.5 thirsty, else fading.
func Health(daysSinceContact, targetFrequencyDays int) HealthState {
	if targetFrequencyDays <= 0 {
		targetFrequencyDays = DefaultFrequencyDays
	}
	if daysSinceContact < 0 {
		daysSinceContact = 0
	}
	ratio := float64(daysSinceContact) / float64(targetFrequencyDays)
	switch {
	case ratio <= 0.5:
		return Blooming
	case ratio <= 1.0:
		return Nourished
	case ratio <= 1.5:
		return Thirsty
	default:
		return Fading
	}
}

// PersonHealth is the computed health of one person at a point in time.
type PersonHealth struct {
	State            HealthState `json:"state"`
	DaysSinceContact int         `json:"days_since_contact"`
	TargetDays       int         `json:"target_days"`
	DaysOverdue      int         `json:"days_overdue"`
	NeverContacted   bool        `json:"never_contacted"`
}

// HealthOf computes a person's health. A person who was never contacted is
// measured from when they were added.
func HealthOf(p model.Person, now time.Time) PersonHealth {
	target := p.TargetFrequencyDays
	if target <= 0 {
		target = DefaultCadence(p.Importance)
	}

	ref := p.CreatedAt
	never := p.LastInteractionAt == nil
	if !never {
		ref = *p.LastInteractionAt
	}

	days := DaysBetween(ref, now)
	overdue := days - target
	if overdue < 0 {
		overdue = 0
	}
	return PersonHealth{
		State:            Health(days, target),
		DaysSinceContact: days,
		TargetDays:       target,
		DaysOverdue:      overdue,
		NeverContacted:   never,
	}
}

// DaysBetween counts whole calendar days from a to b in b's location.
// Negative spans clamp to zero.
func DaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(db.Sub(da).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// HealthCounts tallies states across persons, skipping archived ones.
func HealthCounts(persons []model.Person, now time.Time) map[HealthState]int {
	counts := make(map[HealthState]int, len(HealthStates))
	for _, s := range HealthStates {
		counts[s] = 0
	}
	for _, p := range persons {
		if p.Archived {
			continue
		}
		counts[HealthOf(p, now).State]++
	}
	return counts
}

// AttentionItem is a contact that needs tending, with its health.
type AttentionItem struct {
	Person model.Person `json:"person"`
	Health PersonHealth `json:"health"`
}

// NeedsAttention returns thirsty and fading contacts, most overdue first.
func NeedsAttention(persons []model.Person, now time.Time, limit int) []AttentionItem {
	var items []AttentionItem
	for _, p := range persons {
		if p.Archived {
			continue
		}
		h := HealthOf(p, now)
		if h.State.Severity() < Thirsty.Severity() {
			continue
		}
		items = append(items, AttentionItem{Person: p, Health: h})
	}
	sortAttention(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func sortAttention(items []AttentionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].Health.State.Severity(), items[j].Health.State.Severity()
		if si != sj {
			return si > sj
		}
		if items[i].Health.DaysOverdue != items[j].Health.DaysOverdue {
			return items[i].Health.DaysOverdue > items[j].Health.DaysOverdue
		}
		return items[i].Person.FullName() < items[j].Person.FullName()
	})
}
