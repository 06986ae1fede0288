package watch

import "fmt"

// Movement classifies a price observation relative to the previous one.
// It is informational only; control flow depends solely on Decision.Notify.
type Movement string

const (
	FirstObservation      Movement = "first_observation"
	Dropped               Movement = "dropped"
	DroppedAboveThreshold Movement = "dropped_above_threshold"
	Increased             Movement = "increased"
	Unchanged             Movement = "unchanged"
)

// Decision is the outcome of gating one price observation.
type Decision struct {
	Notify   bool
	Movement Movement
}

// Decide determines whether a price observation warrants alerting the user.
// previous is nil when the item has never been observed; a first observation
// is record-only. A notification fires only on a strictly-decreasing
// transition that also lands under the user threshold, so a price that sits
// flat below the threshold across runs alerts once, on the crossing.
func Decide(current float64, previous *float64, maxPrice float64) Decision {
	if previous == nil {
		return Decision{Movement: FirstObservation}
	}

	switch {
	case current < maxPrice && current < *previous:
		return Decision{Notify: true, Movement: Dropped}
	case current > *previous:
		return Decision{Movement: Increased}
	case current == *previous:
		return Decision{Movement: Unchanged}
	default:
		return Decision{Movement: DroppedAboveThreshold}
	}
}

// AlertMessage renders the notification body for a gated drop.
func AlertMessage(name string, current float64, previous *float64) string {
	was := "unknown"
	if previous != nil {
		was = fmt.Sprintf("$%.2f", *previous)
	}
	return fmt.Sprintf("%s price dropped to $%.2f (was previously %s)", name, current, was)
}

// AlertTitle renders the notification title for a gated drop.
func AlertTitle(name string) string {
	return fmt.Sprintf("Price Drop Alert! - %s", name)
}
