package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
)

const (
	recentInteractions  = 10
	maxMemoriesInDigest = 10
	interactionNoteMax  = 200
	digestMax           = 6000
)

// digest is everything the prompts know about one contact.
type digest struct {
	person       model.Person
	memories     []model.SharedMemory
	interactions []model.Interaction
}

func (e *Engine) loadDigest(userID, personID string) (*digest, error) {
	p, err := e.DB.RequirePerson(userID, personID)
	if err != nil {
		return nil, err
	}
	memories, err := e.DB.ListMemories(userID, personID)
	if err != nil {
		return nil, err
	}
	interactions, err := e.DB.ListInteractions(userID, personID, recentInteractions)
	if err != nil {
		return nil, err
	}
	return &digest{person: *p, memories: memories, interactions: interactions}, nil
}

// render condenses the digest to plain text. Empty fields are omitted and
// long interaction notes are clipped so the prompt stays bounded.
func (d *digest) render(now time.Time) string {
	p := d.person
	var b strings.Builder

	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.TrimSpace(value))
		}
	}

	line("Name", p.FullName())
	h := contacts.HealthOf(p, now)
	fmt.Fprintf(&b, "Importance: %s (aim to talk every %d days)\n", p.Importance, h.TargetDays)
	if h.NeverContacted {
		b.WriteString("Last contact: never logged\n")
	} else {
		fmt.Fprintf(&b, "Last contact: %s (%d days ago)\n", p.LastInteractionAt.Format("2006-01-02"), h.DaysSinceContact)
	}
	line("Where met", p.WhereMet)
	line("Why stay in contact", p.WhyStayInContact)
	line("Most important to know", p.MostImportantToKnow)
	line("Birthday", p.Birthday)
	line("Tribes", strings.Join(p.Tags, ", "))
	line("Interests", strings.Join(p.Interests, ", "))

	if len(d.memories) > 0 {
		b.WriteString("Shared memories:\n")
		for i, m := range d.memories {
			if i == maxMemoriesInDigest {
				break
			}
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}

	if len(d.interactions) > 0 {
		b.WriteString("Recent interactions:\n")
		for _, in := range d.interactions {
			notes := truncateClean(strings.TrimSpace(in.Notes), interactionNoteMax)
			if notes == "" {
				fmt.Fprintf(&b, "- %s %s\n", in.OccurredAt.Format("2006-01-02"), in.Kind)
				continue
			}
			fmt.Fprintf(&b, "- %s %s: %s\n", in.OccurredAt.Format("2006-01-02"), in.Kind, notes)
		}
	}

	return truncateClean(strings.TrimSpace(b.String()), digestMax)
}

// hasSubstance reports whether there is anything beyond the name to go on.
func (d *digest) hasSubstance() bool {
	p := d.person
	return p.WhereMet != "" || p.WhyStayInContact != "" || p.MostImportantToKnow != "" ||
		len(p.Interests) > 0 || len(d.memories) > 0 || len(d.interactions) > 0
}
