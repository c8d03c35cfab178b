package llm

import "fmt"

// NoUpdate is what a model returns when it has nothing useful to add.
const NoUpdate = "NO_UPDATE"

// SummaryPrompt asks for a short relationship summary from a contact digest.
func SummaryPrompt(name, digest string) string {
	return fmt.Sprintf(`Write a relationship summary for %s based on the notes below.

NOTES:
%s

Rules:
- 3 to 5 sentences, second person ("You met ...")
- Mention how you know them, what matters to them and when you last talked
- Use only facts from the notes; do not invent details
- Plain text, no headings or bullet points`, name, digest)
}

// BriefingPrompt asks for a pre-meeting briefing.
func BriefingPrompt(meeting, digest string) string {
	return fmt.Sprintf(`Prepare a short briefing for an upcoming meeting.

MEETING:
%s

WHAT YOU KNOW ABOUT THE PERSON:
%s

Return:
1. One line on who they are to you
2. Up to three things worth remembering or asking about
3. One suggested opener

Keep it under 120 words. Use only the facts above.`, meeting, digest)
}

// ExtractionPrompt asks for structured facts pulled from a free-form note.
func ExtractionPrompt(name, note string) string {
	return fmt.Sprintf(`Extract facts about %s from this note the user wrote after talking to them.

NOTE:
%s

Return ONLY a JSON object, no other text:
{
  "interests": ["short noun phrases, e.g. \"rock climbing\""],
  "memories": ["one-sentence moments worth remembering"],
  "where_met": "where the user met them, or empty",
  "most_important_to_know": "the single most important thing to remember, or empty"
}

Rules:
- Only include facts stated in the note
- Interests are 1-4 words each
- Use empty arrays and empty strings when the note has nothing for a field`, name, note)
}

// RescuePrompt asks for a reconnect message to a contact the user has
// drifted from.
func RescuePrompt(name string, daysSince int, digest string) string {
	return fmt.Sprintf(`It has been %d days since the user last talked to %s. Draft a short message the user could send to reconnect.

WHAT YOU KNOW:
%s

Rules:
- 1 to 3 sentences, casual and warm
- Reference one specific shared detail if there is one
- No apologies for the gap, no emojis
- Return only the message text
- If there is nothing to go on, return %s`, daysSince, name, digest, NoUpdate)
}
