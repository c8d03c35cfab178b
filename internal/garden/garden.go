// Package garden computes the spatial layouts behind the garden and tree
// views. Layouts are deterministic for a given input and seed.
package garden

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
)

// GoldenAngle is the phyllotaxis divergence angle in degrees.
const GoldenAngle = 137.508

// Options tunes the ring geometry.
type Options struct {
	RingWidth   float64 // radial thickness of each ring
	InnerRadius float64 // empty space at the center
	Jitter      float64 // max offset added to x and y; negative disables it
	Seed        int64
}

// DefaultOptions matches the proportions the web client renders at.
func DefaultOptions() Options {
	return Options{
		RingWidth:   120,
		InnerRadius: 40,
		Jitter:      6,
		Seed:        1,
	}
}

// withDefaults fills zero geometry from DefaultOptions. The seed is
// always the caller's.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RingWidth <= 0 {
		o.RingWidth = d.RingWidth
	}
	if o.InnerRadius <= 0 {
		o.InnerRadius = d.InnerRadius
	}
	switch {
	case o.Jitter == 0:
		o.Jitter = d.Jitter
	case o.Jitter < 0:
		o.Jitter = 0
	}
	return o
}

// Placement is one contact positioned in the garden.
type Placement struct {
	PersonID string               `json:"person_id"`
	Name     string               `json:"name"`
	Ring     int                  `json:"ring"`
	X        float64              `json:"x"`
	Y        float64              `json:"y"`
	Health   contacts.HealthState `json:"health"`
}

// ringFor buckets importance into concentric rings: high at the center.
func ringFor(imp model.Importance) int {
	switch imp {
	case model.ImportanceHigh:
		return 0
	case model.ImportanceLow:
		return 2
	default:
		return 1
	}
}

// Layout places active persons into rings by importance. Within a ring the
// i-th person sits at angle i*GoldenAngle and radius
// inner + width*sqrt((i+0.5)/n), then gets a seeded jitter.
func Layout(persons []model.Person, now time.Time, opts Options) []Placement {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	rings := make(map[int][]model.Person)
	for _, p := range persons {
		if p.Archived {
			continue
		}
		r := ringFor(p.Importance)
		rings[r] = append(rings[r], p)
	}

	var out []Placement
	for ring := 0; ring <= 2; ring++ {
		members := rings[ring]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].FullName() != members[j].FullName() {
				return members[i].FullName() < members[j].FullName()
			}
			return members[i].ID < members[j].ID
		})

		n := float64(len(members))
		inner := opts.InnerRadius + float64(ring)*opts.RingWidth
		for i, p := range members {
			theta := float64(i) * GoldenAngle * math.Pi / 180
			radius := inner + opts.RingWidth*math.Sqrt((float64(i)+0.5)/n)
			x := radius*math.Cos(theta) + (rng.Float64()*2-1)*opts.Jitter
			y := radius*math.Sin(theta) + (rng.Float64()*2-1)*opts.Jitter
			out = append(out, Placement{
				PersonID: p.ID,
				Name:     p.FullName(),
				Ring:     ring,
				X:        round2(x),
				Y:        round2(y),
				Health:   contacts.HealthOf(p, now).State,
			})
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
