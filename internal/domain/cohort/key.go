// Package cohort contains the domain model for anonymous peer cohorts:
// the composite cohort key, cohort state, member metrics, and the
// append-only movement record.
package cohort

import (
	"fmt"
	"strconv"
	"strings"
)

// Velocity is the categorical learning pace derived from recent task
// throughput.
type Velocity string

// Velocity tiers.
const (
	VelocitySlow   Velocity = "slow"
	VelocityMedium Velocity = "medium"
	VelocityFast   Velocity = "fast"
)

// Valid reports whether v is one of the known velocity tiers.
func (v Velocity) Valid() bool {
	switch v {
	case VelocitySlow, VelocityMedium, VelocityFast:
		return true
	}
	return false
}

// Cohort size bounds. Every non-global cohort must hold
// [MinSize, MaxSize] members at rest between balance runs.
const (
	MinSize     = 15
	MaxSize     = 30
	SplitTarget = 22
)

// Skill tier bounds. Tiers advance in 0.5 increments.
const (
	MinSkillTier  = 4.0
	MaxSkillTier  = 9.0
	SkillTierStep = 0.5
)

// Key identifies a cohort: skill tier, velocity tier, and track, plus
// an optional split index for cohorts produced by splitting an
// oversized one. The zero Key means "unassigned". The global fallback
// bucket is the sentinel with Global set.
type Key struct {
	SkillTier float64
	Velocity  Velocity
	Track     string
	Split     int
	Global    bool
}

// GlobalKey is the fallback bucket with no size bound.
var GlobalKey = Key{Global: true}

// ValidTrack reports whether s can serve as a track identifier. The
// "/" and "!" characters are reserved by the canonical serialization
// and the store key layout; a track carrying either would produce a
// key that writes but never parses back.
func ValidTrack(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/!")
}

// NewKey builds a regular (non-global) cohort key.
func NewKey(skillTier float64, velocity Velocity, track string) Key {
	return Key{SkillTier: skillTier, Velocity: velocity, Track: track}
}

// IsZero reports whether k is the unassigned sentinel.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Base returns the key with any split index stripped. Two keys with
// the same base identify the same classification bucket.
func (k Key) Base() Key {
	k.Split = 0
	return k
}

// WithSplit returns a copy of k carrying the given split index.
func (k Key) WithSplit(n int) Key {
	k.Split = n
	return k
}

// String renders the canonical serialized form used for storage keys
// and lookups: "skillTier/velocity/track[/splitIndex]", or "global".
func (k Key) String() string {
	if k.Global {
		return "global"
	}
	if k.IsZero() {
		return ""
	}
	s := fmt.Sprintf("%.1f/%s/%s", k.SkillTier, k.Velocity, k.Track)
	if k.Split > 0 {
		s += "/" + strconv.Itoa(k.Split)
	}
	return s
}

// ParseKey parses the canonical form produced by String.
func ParseKey(s string) (Key, error) {
	if s == "global" {
		return GlobalKey, nil
	}
	if s == "" {
		return Key{}, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 && len(parts) != 4 {
		return Key{}, fmt.Errorf("malformed cohort key %q", s)
	}
	tier, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed skill tier in cohort key %q: %w", s, err)
	}
	vel := Velocity(parts[1])
	if !vel.Valid() {
		return Key{}, fmt.Errorf("unknown velocity tier in cohort key %q", s)
	}
	k := Key{SkillTier: tier, Velocity: vel, Track: parts[2]}
	if len(parts) == 4 {
		split, err := strconv.Atoi(parts[3])
		if err != nil || split < 1 {
			return Key{}, fmt.Errorf("malformed split index in cohort key %q", s)
		}
		k.Split = split
	}
	return k, nil
}
