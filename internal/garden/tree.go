package garden

import (
	"sort"
	"strings"
	"time"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
)

// UntaggedBranch collects contacts that belong to no tribe.
const UntaggedBranch = "Other"

// Leaf is a contact hanging on a tribe branch.
type Leaf struct {
	PersonID string               `json:"person_id"`
	Name     string               `json:"name"`
	Health   contacts.HealthState `json:"health"`
}

// Branch is one tribe with its contacts and their health tally.
type Branch struct {
	Tribe  string                       `json:"tribe"`
	Leaves []Leaf                       `json:"leaves"`
	Counts map[contacts.HealthState]int `json:"counts"`
}

// Tree groups active persons into tribe branches. A person with several
// tags appears on each branch. Branches are ordered by name with the
// untagged branch last; leaves by health severity, worst first, then name.
func Tree(persons []model.Person, now time.Time) []Branch {
	byTribe := make(map[string][]Leaf)
	for _, p := range persons {
		if p.Archived {
			continue
		}
		leaf := Leaf{PersonID: p.ID, Name: p.FullName(), Health: contacts.HealthOf(p, now).State}
		if len(p.Tags) == 0 {
			byTribe[UntaggedBranch] = append(byTribe[UntaggedBranch], leaf)
			continue
		}
		for _, tag := range p.Tags {
			byTribe[tag] = append(byTribe[tag], leaf)
		}
	}

	names := make([]string, 0, len(byTribe))
	for name := range byTribe {
		if name != UntaggedBranch {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	if _, ok := byTribe[UntaggedBranch]; ok {
		names = append(names, UntaggedBranch)
	}

	branches := make([]Branch, 0, len(names))
	for _, name := range names {
		leaves := byTribe[name]
		sort.SliceStable(leaves, func(i, j int) bool {
			si, sj := leaves[i].Health.Severity(), leaves[j].Health.Severity()
			if si != sj {
				return si > sj
			}
			return leaves[i].Name < leaves[j].Name
		})
		counts := make(map[contacts.HealthState]int, len(contacts.HealthStates))
		for _, s := range contacts.HealthStates {
			counts[s] = 0
		}
		for _, l := range leaves {
			counts[l.Health]++
		}
		branches = append(branches, Branch{Tribe: name, Leaves: leaves, Counts: counts})
	}
	return branches
}
