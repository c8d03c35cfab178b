package practice

import (
	"time"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
)

// Stats summarizes a user's practice history.
type Stats struct {
	TotalSessions int        `json:"total_sessions"`
	BestScore     int        `json:"best_score"`
	BestTotal     int        `json:"best_total"`
	CurrentStreak int        `json:"current_streak"`
	LastPlayedAt  *time.Time `json:"last_played_at,omitempty"`
}

// ComputeStats derives totals and the current daily streak. The streak
// counts consecutive days with at least one session, ending today or
// yesterday; older than that it is zero.
func ComputeStats(sessions []model.PracticeSession, now time.Time) Stats {
	var st Stats
	st.TotalSessions = len(sessions)
	if len(sessions) == 0 {
		return st
	}

	days := make(map[string]bool, len(sessions))
	var last time.Time
	for _, s := range sessions {
		if better(s, st.BestScore, st.BestTotal) {
			st.BestScore, st.BestTotal = s.Score, s.Total
		}
		if s.CompletedAt.After(last) {
			last = s.CompletedAt
		}
		days[dayKey(s.CompletedAt, now.Location())] = true
	}
	st.LastPlayedAt = &last

	if contacts.DaysBetween(last, now) > 1 {
		return st
	}
	day := last.In(now.Location())
	for days[dayKey(day, now.Location())] {
		st.CurrentStreak++
		day = day.AddDate(0, 0, -1)
	}
	return st
}

// better ranks sessions by score, then by fewer questions for the same score.
func better(s model.PracticeSession, score, total int) bool {
	if s.Score != score {
		return s.Score > score
	}
	return total == 0 || (s.Total > 0 && s.Total < total)
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
