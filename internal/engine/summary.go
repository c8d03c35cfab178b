package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/llm"
	"github.com/rememberme/rememberme/internal/model"
)

// Summarize generates and stores a relationship summary for a person.
func (e *Engine) Summarize(ctx context.Context, userID, personID string) (*model.Person, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "engine.Summarize", trace.WithAttributes(attribute.String("person.id", personID)))
	defer span.End()

	d, err := e.loadDigest(userID, personID)
	if err != nil {
		return nil, err
	}
	if !d.hasSubstance() {
		return nil, apperr.Validation("add where you met, an interest or a memory before summarizing %s", d.person.FullName())
	}

	now := e.now()
	summary, err := e.complete(ctx, "summary", llm.SummaryPrompt(d.person.FullName(), d.render(now)))
	if err != nil {
		return nil, err
	}
	summary = truncateClean(summary, maxFieldChars*4)
	if summary == "" {
		return nil, apperr.Unavailable("AI returned an empty summary", nil)
	}

	if err := e.DB.SetRelationshipSummary(userID, personID, summary, now); err != nil {
		return nil, err
	}
	e.Logger.Info("summary updated", zap.String("user", userID), zap.String("person", personID), zap.Int("chars", len(summary)))
	return e.DB.RequirePerson(userID, personID)
}

// Brief generates and stores a pre-meeting briefing for the meeting's
// matched contact.
func (e *Engine) Brief(ctx context.Context, userID, meetingID string) (*model.Meeting, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "engine.Brief", trace.WithAttributes(attribute.String("meeting.id", meetingID)))
	defer span.End()

	m, err := e.DB.RequireMeeting(userID, meetingID)
	if err != nil {
		return nil, err
	}
	if m.PersonID == "" {
		return nil, apperr.Validation("meeting %s has no matched contact", meetingID)
	}

	d, err := e.loadDigest(userID, m.PersonID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	meeting := fmt.Sprintf("%s\n%s to %s", m.Title,
		m.StartsAt.Format(time.RFC1123), m.EndsAt.Format(time.Kitchen))
	briefing, err := e.complete(ctx, "briefing", llm.BriefingPrompt(meeting, d.render(now)))
	if err != nil {
		return nil, err
	}
	if briefing == "" {
		return nil, apperr.Unavailable("AI returned an empty briefing", nil)
	}

	if err := e.DB.SetBriefing(userID, meetingID, briefing, now); err != nil {
		return nil, err
	}
	e.Logger.Info("briefing generated", zap.String("user", userID), zap.String("meeting", meetingID))
	return e.DB.RequireMeeting(userID, meetingID)
}
