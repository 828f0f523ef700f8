package mapping

import "github.com/okian/padmap/internal/domain/input"

// Match scans rules in order and returns the first rule whose condition ev
// satisfies, with its index. Only one rule fires per event; chorded triggers
// across several physical inputs are not expressible.
func Match(rules []Rule, ev input.Event) (Rule, int, bool) {
	for i, r := range rules {
		if r.Matches(ev) {
			return r, i, true
		}
	}
	return Rule{}, -1, false
}
