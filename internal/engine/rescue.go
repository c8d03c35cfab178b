package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/llm"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

// suggestionCooldown suppresses a new suggestion while a recent one is open.
const suggestionCooldown = 7 * 24 * time.Hour

// RescueReport tallies one WeeklyRescue run.
type RescueReport struct {
	Users     int `json:"users"`
	Suggested int `json:"suggested"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r RescueReport) fields() []zap.Field {
	return []zap.Field{
		zap.Int("users", r.Users),
		zap.Int("suggested", r.Suggested),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
	}
}

// rescueCandidates returns the fading active persons, longest silence first.
func rescueCandidates(persons []model.Person, now time.Time) []contacts.AttentionItem {
	var out []contacts.AttentionItem
	for _, p := range persons {
		if p.Archived {
			continue
		}
		h := contacts.HealthOf(p, now)
		if h.State == contacts.Fading {
			out = append(out, contacts.AttentionItem{Person: p, Health: h})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Health.DaysSinceContact != out[j].Health.DaysSinceContact {
			return out[i].Health.DaysSinceContact > out[j].Health.DaysSinceContact
		}
		return out[i].Person.FullName() < out[j].Person.FullName()
	})
	return out
}

// WeeklyRescue drafts reconnect messages for each user's most neglected
// contacts. Users and contacts are processed one at a time with a fixed
// pause between AI calls. A failing contact is logged and skipped; only a
// store failure listing users or a cancelled context aborts the run.
func (e *Engine) WeeklyRescue(ctx context.Context) (RescueReport, error) {
	var report RescueReport
	ctx, span := tracer.Start(ctx, "engine.WeeklyRescue")
	defer func() {
		span.SetAttributes(
			attribute.Int("rescue.users", report.Users),
			attribute.Int("rescue.suggested", report.Suggested),
		)
		span.End()
	}()

	users, err := e.DB.ListUsersWithPersons()
	if err != nil {
		return report, err
	}

	calls := 0
	for _, userID := range users {
		report.Users++
		persons, err := e.DB.ListPersons(userID, store.PersonFilter{})
		if err != nil {
			e.Logger.Error("rescue: list persons", zap.String("user", userID), zap.Error(err))
			report.Failed++
			continue
		}

		now := e.now()
		picked := 0
		for _, item := range rescueCandidates(persons, now) {
			if picked >= e.Rescue.MaxPerUser {
				break
			}
			open, err := e.DB.HasOpenSuggestionSince(userID, item.Person.ID, now.Add(-suggestionCooldown))
			if err != nil {
				e.Logger.Error("rescue: check suggestions", zap.String("person", item.Person.ID), zap.Error(err))
				report.Failed++
				continue
			}
			if open {
				report.Skipped++
				continue
			}
			picked++

			if calls > 0 {
				if err := e.sleep(ctx, e.Rescue.Interval); err != nil {
					return report, err
				}
			}
			calls++

			if err := e.rescueOne(ctx, userID, item, now); err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				e.Logger.Warn("rescue: contact failed",
					zap.String("user", userID), zap.String("person", item.Person.ID), zap.Error(err))
				report.Failed++
				continue
			}
			report.Suggested++
		}
	}
	return report, nil
}

func (e *Engine) rescueOne(ctx context.Context, userID string, item contacts.AttentionItem, now time.Time) error {
	d, err := e.loadDigest(userID, item.Person.ID)
	if err != nil {
		return err
	}
	msg, err := e.complete(ctx, "rescue", llm.RescuePrompt(d.person.FullName(), item.Health.DaysSinceContact, d.render(now)))
	if err != nil {
		return err
	}
	if msg == "" || strings.Contains(msg, llm.NoUpdate) {
		msg = "Hey " + d.person.FirstName + ", it's been a while. How have you been?"
	}
	s := &model.RescueSuggestion{
		UserID:    userID,
		PersonID:  item.Person.ID,
		Message:   truncateClean(msg, maxMemoryChars),
		CreatedAt: now,
	}
	if err := e.DB.CreateRescueSuggestion(s); err != nil {
		return err
	}
	e.Metrics.RescueSuggested()
	return nil
}
