// Package model defines the contact-graph data types shared by the store,
// the pure helpers and the HTTP API.
package model

import "time"

// Importance buckets a person for cadence defaults and garden rings.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ValidImportance are the allowed importance values.
var ValidImportance = map[Importance]bool{
	ImportanceHigh:   true,
	ImportanceMedium: true,
	ImportanceLow:    true,
}

// Person is someone the user keeps track of.
type Person struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name,omitempty"`
	Email               string     `json:"email,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	PhotoURL            string     `json:"photo_url,omitempty"`
	Birthday            string     `json:"birthday,omitempty"` // YYYY-MM-DD or --MM-DD
	WhereMet            string     `json:"where_met,omitempty"`
	WhyStayInContact    string     `json:"why_stay_in_contact,omitempty"`
	MostImportantToKnow string     `json:"most_important_to_know,omitempty"`
	Importance          Importance `json:"importance"`
	TargetFrequencyDays int        `json:"target_frequency_days"`
	LastInteractionAt   *time.Time `json:"last_interaction_at,omitempty"`
	RelationshipSummary string     `json:"relationship_summary,omitempty"`
	SummaryUpdatedAt    *time.Time `json:"summary_updated_at,omitempty"`
	Archived            bool       `json:"archived"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Tags      []string `json:"tags,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// InteractionKind is the channel an interaction happened on.
type InteractionKind string

// ValidInteractionKinds are the allowed interaction kinds.
var ValidInteractionKinds = map[InteractionKind]bool{
	"call":    true,
	"text":    true,
	"email":   true,
	"meeting": true,
	"social":  true,
	"other":   true,
}

// Interaction is one logged touchpoint with a person.
type Interaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	PersonID   string          `json:"person_id"`
	Kind       InteractionKind `json:"kind"`
	Notes      string          `json:"notes,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Tag is a user-defined tribe.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Interest is something a person cares about.
type Interest struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
}

// SharedMemory is a moment the user shared with a person.
type SharedMemory struct {
	ID         string     `json:"id"`
	PersonID   string     `json:"person_id"`
	Content    string     `json:"content"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Relationship links two of the user's contacts.
type Relationship struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PersonID        string    `json:"person_id"`
	RelatedPersonID string    `json:"related_person_id"`
	Label           string    `json:"label"`
	CreatedAt       time.Time `json:"created_at"`
}

// CalendarProvider names a supported calendar backend.
type CalendarProvider string

const (
	ProviderGoogle    CalendarProvider = "google"
	ProviderMicrosoft CalendarProvider = "microsoft"
)

// CalendarConnection holds sealed OAuth tokens for one provider.
type CalendarConnection struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	Provider           CalendarProvider `json:"provider"`
	AccountEmail       string           `json:"account_email,omitempty"`
	SealedAccessToken  string           `json:"-"`
	SealedRefreshToken string           `json:"-"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// CalendarPreferences are per-user sync settings.
type CalendarPreferences struct {
	UserID              string `json:"user_id"`
	Enabled             bool   `json:"enabled"`
	BriefingLeadMinutes int    `json:"briefing_lead_minutes"`
	OnlyKnownContacts   bool   `json:"only_known_contacts"`
}

// Meeting is a synced calendar event.
type Meeting struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	Provider            CalendarProvider `json:"provider"`
	ExternalID          string           `json:"external_id"`
	Title               string           `json:"title"`
	StartsAt            time.Time        `json:"starts_at"`
	EndsAt              time.Time        `json:"ends_at"`
	AttendeeEmails      []string         `json:"attendee_emails,omitempty"`
	PersonID            string           `json:"person_id,omitempty"`
	Briefing            string           `json:"briefing,omitempty"`
	BriefingGeneratedAt *time.Time       `json:"briefing_generated_at,omitempty"`
}

// PracticeSession is one completed practice game.
type PracticeSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Game        string    `json:"game"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	CompletedAt time.Time `json:"completed_at"`
}

// RescueSuggestion is a drafted reconnect message for a fading contact.
type RescueSuggestion struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	PersonID    string     `json:"person_id"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}
