package garden

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
)

var now = time.Date(2026, 6, 30, 9, 0, 0, 0, time.UTC)

func person(id string, imp model.Importance, daysAgo int, tags ...string) model.Person {
	last := now.AddDate(0, 0, -daysAgo)
	return model.Person{
		ID:                  id,
		FirstName:           "P" + id,
		Importance:          imp,
		TargetFrequencyDays: 10,
		LastInteractionAt:   &last,
		CreatedAt:           last,
		Tags:                tags,
	}
}

func TestLayoutDeterministic(t *testing.T) {
	var persons []model.Person
	for i := 0; i < 12; i++ {
		imp := []model.Importance{model.ImportanceHigh, model.ImportanceMedium, model.ImportanceLow}[i%3]
		persons = append(persons, person(fmt.Sprintf("%02d", i), imp, i))
	}

	a := Layout(persons, now, DefaultOptions())
	b := Layout(persons, now, DefaultOptions())
	require.Equal(t, a, b)
	require.Len(t, a, 12)

	opts := DefaultOptions()
	opts.Seed = 99
	c := Layout(persons, now, opts)
	assert.NotEqual(t, a, c, "different seed moves the jitter")
}

func TestLayoutKeepsSeedWithPartialOptions(t *testing.T) {
	var persons []model.Person
	for i := 0; i < 6; i++ {
		persons = append(persons, person(fmt.Sprintf("%02d", i), model.ImportanceMedium, i))
	}

	full := DefaultOptions()
	full.Seed = 99
	got := Layout(persons, now, Options{RingWidth: full.RingWidth, InnerRadius: full.InnerRadius, Jitter: full.Jitter, Seed: 99})
	assert.Equal(t, Layout(persons, now, full), got)

	partial := Layout(persons, now, Options{Seed: 99})
	assert.Equal(t, got, partial, "zero geometry is defaulted and the seed kept")
	assert.NotEqual(t, Layout(persons, now, DefaultOptions()), partial)

	still := Layout(persons, now, Options{Jitter: -1, Seed: 99})
	assert.NotEqual(t, got, still)
	assert.Equal(t, still, Layout(persons, now, Options{Jitter: -1, Seed: 7}), "no jitter, seed has nothing to move")
}

func TestLayoutRingsAndRadius(t *testing.T) {
	persons := []model.Person{
		person("1", model.ImportanceHigh, 1),
		person("2", model.ImportanceMedium, 1),
		person("3", model.ImportanceLow, 30),
		person("4", model.ImportanceLow, 1),
	}
	archived := person("5", model.ImportanceHigh, 1)
	archived.Archived = true
	persons = append(persons, archived)

	opts := Options{RingWidth: 100, InnerRadius: 50, Jitter: 0, Seed: 1}
	got := Layout(persons, now, opts)
	require.Len(t, got, 4)

	for _, p := range got {
		r := math.Hypot(p.X, p.Y)
		inner := opts.InnerRadius + float64(p.Ring)*opts.RingWidth
		assert.GreaterOrEqual(t, r, inner-0.01, p.PersonID)
		assert.LessOrEqual(t, r, inner+opts.RingWidth+0.01, p.PersonID)
	}

	rings := map[string]int{}
	health := map[string]contacts.HealthState{}
	for _, p := range got {
		rings[p.PersonID] = p.Ring
		health[p.PersonID] = p.Health
	}
	assert.Equal(t, 0, rings["1"])
	assert.Equal(t, 1, rings["2"])
	assert.Equal(t, 2, rings["3"])
	assert.Equal(t, contacts.Fading, health["3"])
	assert.Equal(t, contacts.Blooming, health["4"])

	// First member of a ring sits on the positive x axis.
	assert.InDelta(t, 0, got[0].Y, 0.01)
	assert.InDelta(t, opts.InnerRadius+opts.RingWidth*math.Sqrt(0.5), got[0].X, 0.01)
}

func TestTreeBranches(t *testing.T) {
	persons := []model.Person{
		person("1", model.ImportanceHigh, 1, "NASA", "basketball"),
		person("2", model.ImportanceHigh, 30, "NASA"),
		person("3", model.ImportanceHigh, 12),
	}

	branches := Tree(persons, now)
	require.Len(t, branches, 3)
	assert.Equal(t, "basketball", branches[0].Tribe)
	assert.Equal(t, "NASA", branches[1].Tribe)
	assert.Equal(t, UntaggedBranch, branches[2].Tribe)

	nasa := branches[1]
	require.Len(t, nasa.Leaves, 2)
	assert.Equal(t, "2", nasa.Leaves[0].PersonID, "fading first")
	assert.Equal(t, 1, nasa.Counts[contacts.Fading])
	assert.Equal(t, 1, nasa.Counts[contacts.Blooming])
	assert.Equal(t, 0, nasa.Counts[contacts.Thirsty])

	assert.Equal(t, contacts.Thirsty, branches[2].Leaves[0].Health)
}
