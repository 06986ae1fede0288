package watch

import (
	"fmt"
	"strings"
)

// Report aggregates the outcomes of one scheduler pass.
type Report struct {
	Succeeded int
	Failed    int
	Notified  []string
	Failures  map[string]string
	results   []CheckResult
}

// NewReport builds a report from the pass results. Results arrive in
// completion order; the report preserves that order in its summary.
func NewReport(results []CheckResult) Report {
	r := Report{Failures: make(map[string]string), results: results}
	for _, res := range results {
		if res.Failed() {
			r.Failed++
			r.Failures[res.Item] = res.Err.Error()
			continue
		}
		r.Succeeded++
		if res.Notified {
			r.Notified = append(r.Notified, res.Item)
		}
	}
	return r
}

// ExitCode is non-zero only when every item in a non-empty pass failed.
func (r Report) ExitCode() int {
	if r.Succeeded == 0 && r.Failed > 0 {
		return 1
	}
	return 0
}

// Summary renders a deterministic multi-line end-of-run summary.
func (r Report) Summary() string {
	var b strings.Builder
	b.WriteString("--- Summary ---\n")
	for _, res := range r.results {
		if res.Failed() {
			fmt.Fprintf(&b, "%s: failed (%s)\n", res.Item, res.Err)
			continue
		}
		status := "no alert"
		if res.Notified {
			status = "notified"
		}
		fmt.Fprintf(&b, "%s: $%.2f (%s)\n", res.Item, res.Price, status)
	}
	fmt.Fprintf(&b, "checked=%d succeeded=%d failed=%d notified=%d",
		len(r.results), r.Succeeded, r.Failed, len(r.Notified))
	return b.String()
}
