// Package ghost classifies a user's position relative to a reference
// value (cohort aggregate or historical benchmark) and renders the
// anonymized comparison message shown to the user.
package ghost

import (
	"fmt"
	"math"
	"strconv"
)

// Classification of a user's position relative to a reference value.
type Classification string

// Classifications.
const (
	ClassAhead   Classification = "ahead"
	ClassClose   Classification = "close"
	ClassBehind  Classification = "behind"
	ClassNeutral Classification = "neutral"
)

// Kind selects the message family.
type Kind string

// Message kinds.
const (
	KindSuccessBenchmark Kind = "success_benchmark"
	KindCohortComparison Kind = "cohort_comparison"
	KindStreak           Kind = "streak"
	KindTopPerformer     Kind = "top_performer"
)

// Ratio thresholds.
const (
	aheadFloor = 1.1
	closeFloor = 0.9
)

// Message is the rendered comparison plus its raw classification, so
// callers can style independently of wording.
type Message struct {
	Text           string         `json:"text"`
	Classification Classification `json:"classification"`
}

// Classify buckets a user/reference ratio.
func Classify(ratio float64) Classification {
	switch {
	case ratio >= aheadFloor:
		return ClassAhead
	case ratio >= closeFloor:
		return ClassClose
	default:
		return ClassBehind
	}
}

// Compose builds the comparison message for a user value against a
// reference value. A nil-equivalent reference (zero or negative)
// yields a neutral message without dividing.
func Compose(userValue, referenceValue float64, metric string, kind Kind) Message {
	if referenceValue <= 0 {
		return Message{
			Text:           "Not enough peer data yet. Comparisons will appear as your cohort grows.",
			Classification: ClassNeutral,
		}
	}

	class := Classify(userValue / referenceValue)
	user := formatValue(userValue)
	ref := formatValue(referenceValue)
	diff := formatValue(math.Abs(userValue - referenceValue))

	return Message{
		Text:           render(kind, class, user, ref, diff, metric),
		Classification: class,
	}
}

func render(kind Kind, class Classification, user, ref, diff, metric string) string {
	switch kind {
	case KindSuccessBenchmark:
		switch class {
		case ClassAhead:
			return fmt.Sprintf("Great progress! Users who hit their target were at %s %s; you're at %s, %s ahead.", ref, metric, user, diff)
		case ClassClose:
			return fmt.Sprintf("You're right on pace with successful users: they were at %s %s, you're at %s.", ref, metric, user)
		default:
			return fmt.Sprintf("Users who hit their target were at %s %s. You're at %s, %s to close.", ref, metric, user, diff)
		}
	case KindCohortComparison:
		switch class {
		case ClassAhead:
			return fmt.Sprintf("You're ahead of your cohort! The average is %s %s and you're at %s, %s ahead.", ref, metric, user, diff)
		case ClassClose:
			return fmt.Sprintf("You're tracking with your cohort: the average is %s %s, you're at %s.", ref, metric, user)
		default:
			return fmt.Sprintf("Your cohort is averaging %s %s. You're at %s, %s behind. Catch up?", ref, metric, user, diff)
		}
	case KindStreak:
		switch class {
		case ClassAhead:
			return fmt.Sprintf("Your %s-day streak beats your cohort's median of %s. Keep it alive!", user, ref)
		case ClassClose:
			return fmt.Sprintf("Your %s-day streak matches your cohort's median of %s.", user, ref)
		default:
			return fmt.Sprintf("Your cohort's median streak is %s days; yours is %s. One task today restarts the climb.", ref, user)
		}
	default: // KindTopPerformer
		switch class {
		case ClassAhead:
			return fmt.Sprintf("You're in top-performer territory: the 90th percentile is %s %s and you're at %s.", ref, metric, user)
		case ClassClose:
			return fmt.Sprintf("You're knocking on the top ten percent: the 90th percentile is %s %s, you're at %s.", ref, metric, user)
		default:
			return fmt.Sprintf("Top performers log %s %s; you're at %s, %s to go.", ref, metric, user, diff)
		}
	}
}

// formatValue renders numbers without trailing zero noise.
func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
