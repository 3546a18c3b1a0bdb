// Package balance plans and commits the weekly cohort rebalance. A run
// has three phases: candidate selection over a snapshot, structural
// resizing of the resulting occupancy, and validated atomic commit.
package balance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/momenta/cohortd/internal/domain/classify"
	"github.com/momenta/cohortd/internal/domain/cohort"
)

// Planning policy.
const (
	// stabilityHold suppresses reassignment of members placed less
	// than two weeks ago.
	stabilityHold = 14 * 24 * time.Hour

	// graduationDelta is the skill tier change, relative to the tier
	// at placement, that overrides the stability hold.
	graduationDelta = 1.0

	// moveCapFraction bounds how much of a cohort phase one may drain
	// in a single run.
	moveCapFraction = 0.2
)

// Move is one planned member transfer. From is the member's cohort in
// the snapshot the plan was computed over.
type Move struct {
	UserID string
	From   cohort.Key
	To     cohort.Key
	Reason string
}

// Plan is the full output of the planning phases, ready for
// validation and commit.
type Plan struct {
	TakenAt time.Time
	Moves   []Move

	// Deferred counts candidate moves held back by the per-cohort cap.
	Deferred int

	// Structural operation counts for observability.
	Merges          int
	Splits          int
	GlobalFallbacks int
}

// planner carries the mutable working state of one planning run.
type planner struct {
	now  time.Time
	byID map[string]cohort.Member

	// loc is each member's working location; occupancy is its inverse.
	loc       map[string]cohort.Key
	occupancy map[cohort.Key]map[string]struct{}

	moves map[string]*Move
	plan  Plan
}

// BuildPlan computes the full rebalance plan over a member snapshot.
// Planning is pure: deterministic for a given snapshot and instant,
// with no I/O. Members without a cohort placement are ignored; routing
// them is the assignment path's job.
func BuildPlan(members []cohort.Member, now time.Time) Plan {
	p := &planner{
		now:       now,
		byID:      make(map[string]cohort.Member, len(members)),
		loc:       make(map[string]cohort.Key, len(members)),
		occupancy: make(map[cohort.Key]map[string]struct{}),
		moves:     make(map[string]*Move),
		plan:      Plan{TakenAt: now},
	}

	for _, m := range members {
		if m.Key.IsZero() {
			continue
		}
		p.byID[m.ID] = m
		p.loc[m.ID] = m.Key
		p.place(m.ID, m.Key)
	}

	p.reclassify()
	p.resize()

	out := make([]Move, 0, len(p.moves))
	for _, mv := range p.moves {
		out = append(out, *mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	p.plan.Moves = out
	return p.plan
}

func (p *planner) place(id string, key cohort.Key) {
	set, ok := p.occupancy[key]
	if !ok {
		set = make(map[string]struct{})
		p.occupancy[key] = set
	}
	set[id] = struct{}{}
}

// move relocates a member in the working state and records or rewrites
// their pending move. A later phase sending a member back to their
// snapshot cohort cancels the move entirely.
func (p *planner) move(id string, to cohort.Key, reason string) {
	cur := p.loc[id]
	if cur == to {
		return
	}
	delete(p.occupancy[cur], id)
	if len(p.occupancy[cur]) == 0 {
		delete(p.occupancy, cur)
	}
	p.place(id, to)
	p.loc[id] = to

	origin := p.byID[id].Key
	if to == origin {
		delete(p.moves, id)
		return
	}
	if mv, ok := p.moves[id]; ok {
		mv.To = to
		mv.Reason = reason
		return
	}
	p.moves[id] = &Move{UserID: id, From: origin, To: to, Reason: reason}
}

// sortedKeys returns the current working cohort keys in canonical
// order for deterministic iteration.
func (p *planner) sortedKeys() []cohort.Key {
	keys := make([]cohort.Key, 0, len(p.occupancy))
	for k := range p.occupancy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// candidate is a member whose recomputed classification no longer
// matches their cohort.
type candidate struct {
	id     string
	target cohort.Key
	reason string
	delta  float64
	joined time.Time
}

// reclassify is phase one: recompute each active member's ideal key
// and queue moves for mismatches, bounded by the stability hold and
// the per-cohort churn cap.
func (p *planner) reclassify() {
	for _, key := range p.sortedKeys() {
		ids := make([]string, 0, len(p.occupancy[key]))
		for id := range p.occupancy[key] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		preSize := len(ids)

		var cands []candidate
		for _, id := range ids {
			m := p.byID[id]
			if m.Excluded {
				continue
			}

			ideal, err := classify.Key(m)
			if err != nil {
				// Unclassifiable (lost diagnostic, unusable track);
				// the global bucket is the only safe home.
				if !key.Global {
					p.move(id, cohort.GlobalKey, cohort.ReasonGlobalFallback)
					p.plan.GlobalFallbacks++
				}
				continue
			}
			if ideal.Base() == key.Base() {
				continue
			}

			reason := cohort.ReasonRebalance
			if key.Global {
				// Leaving the fallback bucket is always allowed; the
				// hold only protects settled peer groups.
				p.move(id, ideal, reason)
				continue
			}

			tierDelta := math.Abs(ideal.SkillTier - key.SkillTier)
			if p.now.Sub(m.JoinedAt) < stabilityHold {
				// Only genuine improvement graduates early; a member
				// whose skill dropped stays held until the hold ends.
				if ideal.SkillTier-m.JoinedSkillTier < graduationDelta {
					continue
				}
				reason = cohort.ReasonGraduation
			}
			cands = append(cands, candidate{
				id:     id,
				target: ideal,
				reason: reason,
				delta:  tierDelta,
				joined: m.JoinedAt,
			})
		}

		if len(cands) == 0 {
			continue
		}

		// Largest misclassification first; ties to the longest-tenured.
		sort.Slice(cands, func(i, j int) bool {
			a, b := cands[i], cands[j]
			if a.delta != b.delta {
				return a.delta > b.delta
			}
			if !a.joined.Equal(b.joined) {
				return a.joined.Before(b.joined)
			}
			return a.id < b.id
		})

		limit := int(math.Ceil(moveCapFraction * float64(preSize)))
		if len(cands) > limit {
			p.plan.Deferred += len(cands) - limit
			cands = cands[:limit]
		}
		for _, c := range cands {
			p.move(c.id, c.target, c.reason)
		}
	}
}

// resize is phase two: merge undersized cohorts into a compatible
// neighbor (or the global bucket) and split oversized ones.
func (p *planner) resize() {
	for _, key := range p.sortedKeys() {
		set, ok := p.occupancy[key]
		if !ok || key.Global {
			continue
		}
		switch n := len(set); {
		case n < cohort.MinSize:
			p.merge(key)
		case n > cohort.MaxSize:
			p.split(key)
		}
	}
}

// mergeTargets lists the neighbor buckets an undersized cohort may
// merge into, in preference order: adjacent lower tier, adjacent
// higher tier, then sibling velocities.
func mergeTargets(key cohort.Key) []cohort.Key {
	base := key.Base()
	var out []cohort.Key
	if base.SkillTier-cohort.SkillTierStep >= cohort.MinSkillTier {
		out = append(out, cohort.NewKey(base.SkillTier-cohort.SkillTierStep, base.Velocity, base.Track))
	}
	if base.SkillTier+cohort.SkillTierStep <= cohort.MaxSkillTier {
		out = append(out, cohort.NewKey(base.SkillTier+cohort.SkillTierStep, base.Velocity, base.Track))
	}
	for _, v := range []cohort.Velocity{cohort.VelocityMedium, cohort.VelocitySlow, cohort.VelocityFast} {
		if v == base.Velocity {
			continue
		}
		out = append(out, cohort.NewKey(base.SkillTier, v, base.Track))
	}
	return out
}

func (p *planner) merge(key cohort.Key) {
	ids := setToSorted(p.occupancy[key])

	// Split siblings of the same bucket are the most natural home.
	bases := append([]cohort.Key{key.Base()}, mergeTargets(key)...)
	for _, base := range bases {
		for _, target := range p.splitFamily(base) {
			if target == key {
				continue
			}
			combined := len(ids) + len(p.occupancy[target])
			if combined < cohort.MinSize || combined > cohort.MaxSize {
				continue
			}
			for _, id := range ids {
				p.move(id, target, cohort.ReasonMerge)
			}
			p.plan.Merges++
			return
		}
	}

	// No neighbor can absorb them without breaking the bounds.
	for _, id := range ids {
		p.move(id, cohort.GlobalKey, cohort.ReasonGlobalFallback)
	}
	p.plan.GlobalFallbacks++
}

// splitFamily returns the existing working cohorts sharing a base
// key, in canonical order.
func (p *planner) splitFamily(base cohort.Key) []cohort.Key {
	var out []cohort.Key
	for k := range p.occupancy {
		if !k.Global && k.Base() == base {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// split divides an oversized cohort into even chunks around the split
// target. The longest-tenured members keep the original key; later
// chunks take fresh split indices within the base family.
func (p *planner) split(key cohort.Key) {
	ids := setToSorted(p.occupancy[key])
	n := len(ids)

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := p.byID[ids[i]], p.byID[ids[j]]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})

	chunks := int(math.Round(float64(n) / cohort.SplitTarget))
	if chunks < 2 {
		chunks = 2
	}
	size := n / chunks
	rem := n % chunks

	nextSplit := p.maxSplitIndex(key.Base()) + 1
	offset := 0
	for c := 0; c < chunks; c++ {
		length := size
		if c < rem {
			length++
		}
		chunk := ids[offset : offset+length]
		offset += length

		if c == 0 {
			continue // first chunk keeps the original key
		}
		target := key.Base().WithSplit(nextSplit)
		nextSplit++
		for _, id := range chunk {
			p.move(id, target, cohort.ReasonSplit)
		}
	}
	p.plan.Splits++
}

func (p *planner) maxSplitIndex(base cohort.Key) int {
	max := 0
	for k := range p.occupancy {
		if !k.Global && k.Base() == base && k.Split > max {
			max = k.Split
		}
	}
	return max
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Validate is phase three's gate: it replays the plan over the
// snapshot and checks that every resulting non-global cohort is within
// size bounds. A failure means the whole run must be discarded.
func Validate(members []cohort.Member, p Plan) error {
	loc := make(map[string]cohort.Key, len(members))
	for _, m := range members {
		if !m.Key.IsZero() {
			loc[m.ID] = m.Key
		}
	}

	seen := make(map[string]struct{}, len(p.Moves))
	for _, mv := range p.Moves {
		if _, dup := seen[mv.UserID]; dup {
			return fmt.Errorf("%w: duplicate move for user %s", ErrInvariantViolation, mv.UserID)
		}
		seen[mv.UserID] = struct{}{}

		cur, ok := loc[mv.UserID]
		if !ok || cur != mv.From {
			return fmt.Errorf("%w: move for user %s expects cohort %q", ErrInvariantViolation, mv.UserID, mv.From.String())
		}
		loc[mv.UserID] = mv.To
	}

	sizes := make(map[cohort.Key]int)
	for _, key := range loc {
		sizes[key]++
	}
	for key, n := range sizes {
		if key.Global {
			continue
		}
		if n < cohort.MinSize || n > cohort.MaxSize {
			return fmt.Errorf("%w: cohort %q would hold %d members", ErrInvariantViolation, key.String(), n)
		}
	}
	return nil
}
