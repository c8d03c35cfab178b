package contacts

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rememberme/rememberme/internal/model"
)

// NameSimilarityThreshold is the minimum name similarity for a fuzzy match.
const NameSimilarityThreshold = 0.85

// minPhoneDigits guards against matching on short extensions.
const minPhoneDigits = 7

// normalizeName lower-cases and collapses whitespace.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// normalizePhone keeps digits only.
func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity is 1 - distance/maxLen over normalized names. Two empty
// strings are identical.
func Similarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == b {
		return 1
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

// MatchReason explains why two contacts were paired.
type MatchReason string

const (
	ReasonName  MatchReason = "name"
	ReasonEmail MatchReason = "email"
	ReasonPhone MatchReason = "phone"
)

// Duplicate is one candidate to fold into a keeper.
type Duplicate struct {
	Person model.Person `json:"person"`
	Reason MatchReason  `json:"reason"`
	Score  float64      `json:"score"`
}

// DuplicateGroup is a keeper and the contacts that look like the same person.
type DuplicateGroup struct {
	Keeper     model.Person `json:"keeper"`
	Duplicates []Duplicate  `json:"duplicates"`
}

// matchPair compares two persons. Exact email or phone matches win over
// fuzzy names and score 1.
func matchPair(a, b model.Person) (MatchReason, float64, bool) {
	ea, eb := strings.TrimSpace(a.Email), strings.TrimSpace(b.Email)
	if ea != "" && strings.EqualFold(ea, eb) {
		return ReasonEmail, 1, true
	}
	pa, pb := normalizePhone(a.Phone), normalizePhone(b.Phone)
	if len(pa) >= minPhoneDigits && pa == pb {
		return ReasonPhone, 1, true
	}
	na, nb := a.FullName(), b.FullName()
	if normalizeName(na) == "" || normalizeName(nb) == "" {
		return "", 0, false
	}
	if sim := Similarity(na, nb); sim >= NameSimilarityThreshold {
		return ReasonName, sim, true
	}
	return "", 0, false
}

// completeness counts filled optional fields; the keeper is the richest record.
func completeness(p model.Person) int {
	n := 0
	for _, f := range []string{
		p.FirstName, p.LastName, p.Email, p.Phone, p.PhotoURL, p.Birthday,
		p.WhereMet, p.WhyStayInContact, p.MostImportantToKnow, p.RelationshipSummary,
	} {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	if p.LastInteractionAt != nil {
		n++
	}
	return n + len(p.Tags) + len(p.Interests)
}

// FindPotentialDuplicates compares every pair of active persons and groups
// matches transitively. Within a group the most complete record is the
// keeper, ties broken by most recent update.
func FindPotentialDuplicates(persons []model.Person) []DuplicateGroup {
	var active []model.Person
	for _, p := range persons {
		if !p.Archived {
			active = append(active, p)
		}
	}

	n := len(active)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	type edge struct {
		reason MatchReason
		score  float64
	}
	best := make(map[int]edge) // strongest match seen per person

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			reason, score, ok := matchPair(active[i], active[j])
			if !ok {
				continue
			}
			parent[find(j)] = find(i)
			for _, k := range []int{i, j} {
				if e, seen := best[k]; !seen || score > e.score {
					best[k] = edge{reason, score}
				}
			}
		}
	}

	clusters := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	var groups []DuplicateGroup
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		keeperIdx := members[0]
		for _, idx := range members[1:] {
			if betterKeeper(active[idx], active[keeperIdx]) {
				keeperIdx = idx
			}
		}

		g := DuplicateGroup{Keeper: active[keeperIdx]}
		for _, idx := range members {
			if idx == keeperIdx {
				continue
			}
			reason, score, ok := matchPair(active[keeperIdx], active[idx])
			if !ok {
				// Joined through another member of the group.
				reason, score = best[idx].reason, best[idx].score
			}
			g.Duplicates = append(g.Duplicates, Duplicate{Person: active[idx], Reason: reason, Score: score})
		}
		sort.SliceStable(g.Duplicates, func(a, b int) bool {
			if g.Duplicates[a].Score != g.Duplicates[b].Score {
				return g.Duplicates[a].Score > g.Duplicates[b].Score
			}
			return g.Duplicates[a].Person.ID < g.Duplicates[b].Person.ID
		})
		groups = append(groups, g)
	}

	// Clusters come out of a map, so the order must not depend on names alone.
	sort.Slice(groups, func(a, b int) bool {
		ka, kb := groups[a].Keeper, groups[b].Keeper
		if ka.FullName() != kb.FullName() {
			return ka.FullName() < kb.FullName()
		}
		return ka.ID < kb.ID
	})
	return groups
}

func betterKeeper(a, b model.Person) bool {
	ca, cb := completeness(a), completeness(b)
	if ca != cb {
		return ca > cb
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
