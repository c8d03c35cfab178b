package engine

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/llm"
	"github.com/rememberme/rememberme/internal/model"
)

// maxNoteChars bounds what a user can paste into one note.
const maxNoteChars = 8000

// Extraction reports what ExtractNote stored.
type Extraction struct {
	Interests           []string           `json:"interests"`
	Memories            []string           `json:"memories"`
	WhereMet            string             `json:"where_met,omitempty"`
	MostImportantToKnow string             `json:"most_important_to_know,omitempty"`
	Interaction         *model.Interaction `json:"interaction,omitempty"`
}

// ExtractNote asks the model to pull structured facts out of a free-form
// note and stores them on the person: new interests and memories are added,
// where_met and most_important_to_know only fill empty fields. When
// logInteraction is set the note is also logged as an interaction.
func (e *Engine) ExtractNote(ctx context.Context, userID, personID, note string, logInteraction bool) (*Extraction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperr.Validation("note is required")
	}
	if len(note) > maxNoteChars {
		return nil, apperr.Validation("note is longer than %d characters", maxNoteChars)
	}

	ctx, span := tracer.Start(ctx, "engine.ExtractNote", trace.WithAttributes(attribute.String("person.id", personID)))
	defer span.End()

	p, err := e.DB.RequirePerson(userID, personID)
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, "extraction", llm.ExtractionPrompt(p.FullName(), note))
	if err != nil {
		return nil, err
	}
	raw, err := parseNoteResponse(content)
	if err != nil {
		e.Logger.Warn("extraction: unparseable response", zap.String("person", personID), zap.Error(err))
		return nil, apperr.Unavailable("AI returned an unreadable extraction", err)
	}
	c := validateCandidate(raw)

	out := &Extraction{Interests: []string{}, Memories: []string{}}
	for _, name := range c.Interests {
		if _, err := e.DB.AddInterest(userID, personID, name); err != nil {
			e.Logger.Warn("extraction: add interest", zap.String("interest", name), zap.Error(err))
			continue
		}
		out.Interests = append(out.Interests, name)
	}
	for _, memory := range c.Memories {
		if err := e.DB.AddMemory(userID, &model.SharedMemory{PersonID: personID, Content: memory}); err != nil {
			e.Logger.Warn("extraction: add memory", zap.Error(err))
			continue
		}
		out.Memories = append(out.Memories, memory)
	}
	if c.WhereMet != "" || c.MostImportantToKnow != "" {
		if err := e.DB.FillPersonFacts(userID, personID, c.WhereMet, c.MostImportantToKnow); err != nil {
			return nil, err
		}
		if p.WhereMet == "" {
			out.WhereMet = c.WhereMet
		}
		if p.MostImportantToKnow == "" {
			out.MostImportantToKnow = c.MostImportantToKnow
		}
	}

	if logInteraction {
		in := &model.Interaction{
			UserID:     userID,
			PersonID:   personID,
			Kind:       "other",
			Notes:      note,
			OccurredAt: e.now(),
		}
		if err := e.DB.LogInteraction(in); err != nil {
			return nil, err
		}
		out.Interaction = in
	}

	e.Logger.Info("note extracted",
		zap.String("user", userID),
		zap.String("person", personID),
		zap.Int("interests", len(out.Interests)),
		zap.Int("memories", len(out.Memories)),
		zap.Bool("empty", c.empty()))
	return out, nil
}
