// Package practice builds "who is this?" recall quizzes from the user's
// contacts and tracks practice streaks.
package practice

import (
	"math/rand"
	"strings"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

// Game is the name practice sessions are recorded under.
const Game = "who_is_this"

// ChoicesPerQuestion is the number of names offered per question.
const ChoicesPerQuestion = 4

// MaxQuestions caps one quiz.
const MaxQuestions = 20

// ClueKind says which fact a question is built from.
type ClueKind string

const (
	ClueMostImportant ClueKind = "most_important"
	ClueWhereMet      ClueKind = "where_met"
	ClueInterest      ClueKind = "interest"
)

// Choice is one name offered for a question.
type Choice struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Question asks which contact a clue belongs to.
type Question struct {
	Kind    ClueKind `json:"kind"`
	Clue    string   `json:"clue"`
	Choices []Choice `json:"choices"`
}

// Quiz is a set of questions. It carries no answer key: grading checks
// each clue against the contacts again.
type Quiz struct {
	Game      string     `json:"game"`
	Questions []Question `json:"questions"`
}

// clue returns one clue for p, preferring the most telling fact.
func clue(p model.Person, rng *rand.Rand) (ClueKind, string, bool) {
	if s := strings.TrimSpace(p.MostImportantToKnow); s != "" {
		return ClueMostImportant, s, true
	}
	if s := strings.TrimSpace(p.WhereMet); s != "" {
		return ClueWhereMet, s, true
	}
	if len(p.Interests) > 0 {
		return ClueInterest, p.Interests[rng.Intn(len(p.Interests))], true
	}
	return "", "", false
}

// matches reports whether the clue describes p.
func matches(p model.Person, kind ClueKind, value string) bool {
	switch kind {
	case ClueMostImportant:
		return strings.EqualFold(strings.TrimSpace(p.MostImportantToKnow), value)
	case ClueWhereMet:
		return strings.EqualFold(strings.TrimSpace(p.WhereMet), value)
	case ClueInterest:
		for _, i := range p.Interests {
			if strings.EqualFold(i, value) {
				return true
			}
		}
	}
	return false
}

func active(persons []model.Person) []model.Person {
	out := make([]model.Person, 0, len(persons))
	for _, p := range persons {
		if !p.Archived {
			out = append(out, p)
		}
	}
	return out
}

// NewQuiz builds up to n questions from contacts that have at least one
// clue. Each question offers the right name and up to three others that
// the clue does not also describe. At least two eligible contacts are
// needed.
func NewQuiz(persons []model.Person, n int, rng *rand.Rand) (*Quiz, error) {
	if n <= 0 || n > MaxQuestions {
		n = MaxQuestions
	}
	pool := active(persons)

	var eligible []int
	for i, p := range pool {
		if _, _, ok := clue(p, rng); ok {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) < 2 {
		return nil, apperr.Validation("practice needs at least 2 contacts with a detail to quiz on")
	}

	quiz := &Quiz{Game: Game}
	for _, k := range rng.Perm(len(eligible)) {
		if len(quiz.Questions) == n {
			break
		}
		target := pool[eligible[k]]
		kind, value, _ := clue(target, rng)

		var others []Choice
		for _, j := range rng.Perm(len(pool)) {
			p := pool[j]
			if p.ID == target.ID || matches(p, kind, value) {
				continue
			}
			others = append(others, choiceFor(p))
			if len(others) == ChoicesPerQuestion-1 {
				break
			}
		}
		if len(others) == 0 {
			continue
		}

		choices := append(others, choiceFor(target))
		rng.Shuffle(len(choices), func(a, b int) { choices[a], choices[b] = choices[b], choices[a] })
		quiz.Questions = append(quiz.Questions, Question{Kind: kind, Clue: value, Choices: choices})
	}
	if len(quiz.Questions) == 0 {
		return nil, apperr.Validation("every contact shares the same details; add more to practice")
	}
	return quiz, nil
}

func choiceFor(p model.Person) Choice {
	return Choice{PersonID: p.ID, Name: p.FullName(), PhotoURL: p.PhotoURL}
}

// Answer is the user's pick for one question.
type Answer struct {
	Kind     ClueKind `json:"kind" validate:"required,oneof=most_important where_met interest"`
	Clue     string   `json:"clue" validate:"required"`
	PersonID string   `json:"person_id"`
}

// AnswerResult grades one answer.
type AnswerResult struct {
	Clue      string   `json:"clue"`
	Correct   bool     `json:"correct"`
	AnswerIDs []string `json:"answer_ids"`
}

// Result is a graded quiz.
type Result struct {
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Answers []AnswerResult `json:"answers"`
}

// Grade scores answers against the contacts. An answer is right when the
// picked contact fits the clue; when several contacts share a clue any of
// them counts.
func Grade(persons []model.Person, answers []Answer) Result {
	pool := active(persons)
	res := Result{Total: len(answers), Answers: make([]AnswerResult, 0, len(answers))}
	for _, a := range answers {
		value := strings.TrimSpace(a.Clue)
		ar := AnswerResult{Clue: value, AnswerIDs: []string{}}
		for _, p := range pool {
			if matches(p, a.Kind, value) {
				ar.AnswerIDs = append(ar.AnswerIDs, p.ID)
				if p.ID == a.PersonID {
					ar.Correct = true
				}
			}
		}
		if ar.Correct {
			res.Score++
		}
		res.Answers = append(res.Answers, ar)
	}
	return res
}
