package practice

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

func people() []model.Person {
	return []model.Person{
		{ID: "ada", FirstName: "Ada", MostImportantToKnow: "Just became a dad"},
		{ID: "bob", FirstName: "Bob", WhereMet: "PyCon 2019"},
		{ID: "cy", FirstName: "Cy", Interests: []string{"chess"}},
		{ID: "dee", FirstName: "Dee", WhereMet: "PyCon 2019"},
		{ID: "eve", FirstName: "Eve"},
		{ID: "old", FirstName: "Old", WhereMet: "School", Archived: true},
	}
}

func TestNewQuiz(t *testing.T) {
	quiz, err := NewQuiz(people(), 10, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, Game, quiz.Game)
	assert.Len(t, quiz.Questions, 4, "one per eligible active contact")

	for _, q := range quiz.Questions {
		assert.LessOrEqual(t, len(q.Choices), ChoicesPerQuestion)
		right := 0
		for _, c := range q.Choices {
			assert.NotEqual(t, "old", c.PersonID, "archived contacts never appear")
			for _, p := range people() {
				if p.ID == c.PersonID && matches(p, q.Kind, q.Clue) {
					right++
				}
			}
		}
		assert.Equal(t, 1, right, "exactly one choice fits %q", q.Clue)
	}
}

func TestNewQuizDeterministic(t *testing.T) {
	a, err := NewQuiz(people(), 3, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := NewQuiz(people(), 3, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.Questions, 3)
}

func TestNewQuizNeedsTwoContacts(t *testing.T) {
	_, err := NewQuiz([]model.Person{
		{ID: "ada", FirstName: "Ada", WhereMet: "Work"},
		{ID: "eve", FirstName: "Eve"},
	}, 5, rand.New(rand.NewSource(1)))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGrade(t *testing.T) {
	res := Grade(people(), []Answer{
		{Kind: ClueMostImportant, Clue: "Just became a dad", PersonID: "ada"},
		{Kind: ClueWhereMet, Clue: "pycon 2019", PersonID: "dee"},
		{Kind: ClueInterest, Clue: "chess", PersonID: "bob"},
		{Kind: ClueWhereMet, Clue: "School", PersonID: "old"},
	})
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 4, res.Total)
	assert.ElementsMatch(t, []string{"bob", "dee"}, res.Answers[1].AnswerIDs)
	assert.Equal(t, []string{"cy"}, res.Answers[2].AnswerIDs)
	assert.False(t, res.Answers[3].Correct, "archived contacts are out of play")
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	at := func(daysAgo, hour int) time.Time {
		return time.Date(2026, 3, 14-daysAgo, hour, 0, 0, 0, time.UTC)
	}

	st := ComputeStats(nil, now)
	assert.Zero(t, st.TotalSessions)
	assert.Zero(t, st.CurrentStreak)

	sessions := []model.PracticeSession{
		{Score: 3, Total: 5, CompletedAt: at(1, 9)},
		{Score: 4, Total: 5, CompletedAt: at(1, 20)},
		{Score: 2, Total: 5, CompletedAt: at(2, 9)},
		{Score: 5, Total: 10, CompletedAt: at(3, 9)},
		{Score: 1, Total: 5, CompletedAt: at(6, 9)},
	}
	st = ComputeStats(sessions, now)
	assert.Equal(t, 5, st.TotalSessions)
	assert.Equal(t, 5, st.BestScore)
	assert.Equal(t, 3, st.CurrentStreak, "yesterday back to three days ago")
	require.NotNil(t, st.LastPlayedAt)
	assert.True(t, st.LastPlayedAt.Equal(at(1, 20)))

	st = ComputeStats(append(sessions, model.PracticeSession{Score: 1, Total: 5, CompletedAt: at(0, 8)}), now)
	assert.Equal(t, 4, st.CurrentStreak)

	st = ComputeStats(sessions, now.AddDate(0, 0, 2))
	assert.Zero(t, st.CurrentStreak, "broken after a missed day")
}
