package watch

import "time"

// Item is one tracked entry of the watchlist: where to look, which element
// holds the price, and the alert threshold.
type Item struct {
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	PriceSelector string  `json:"priceSelector,omitempty"`
	MaxPrice      float64 `json:"maxPrice"`
}

// HasSelector reports whether the item already carries a usable selector.
func (i Item) HasSelector() bool {
	return len(i.PriceSelector) > 0
}

// Observation is one recorded price reading.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// CheckResult is the per-item outcome of one scheduler pass. Err is nil on
// success; on failure Price and Notified are meaningless.
type CheckResult struct {
	Item     string
	Price    float64
	Notified bool
	Err      error
}

// Failed reports whether the check ended in the error state.
func (r CheckResult) Failed() bool {
	return r.Err != nil
}
